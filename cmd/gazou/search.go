package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/gazou/internal/cli"
	"github.com/hyperjump/gazou/internal/models"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [flags] <query>",
		Short: "Search the index with a text query",
		Long: `Embed the query text and print the closest indexed items, best first.
All arguments are joined with spaces, so multi-word queries work with or without quotes.
With --server the query is sent to a running gazou server instead of loading the index.`,
		Example: `  gazou search a dog playing in snow
  gazou search --top-k 10 --format json "sunset over the sea"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().String("index-dir", "", "index directory (default: storage.index_dir)")
	cmd.Flags().IntP("top-k", "k", 0, "number of results (default: search.default_top_k)")
	cmd.Flags().String("format", "text", "output format: text, compact, or json")
	cmd.Flags().String("server", "", "search through a running server at this URL")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	topK, _ := cmd.Flags().GetInt("top-k")
	query := &models.SearchQuery{Query: buildSearchQuery(args), TopK: topK}

	if serverURL := mustString(cmd, "server"); serverURL != "" {
		response, err := searchViaHTTP(cmd.Context(), serverURL, query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return cli.WriteSearchResults(cmd.OutOrStdout(), response, format)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	indexDir := mustString(cmd, "index-dir")
	if indexDir == "" {
		indexDir = a.cfg.Storage.IndexDir
	}
	if err := a.engine.LoadIndex(indexDir); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	response, err := a.engine.Query(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return cli.WriteSearchResults(cmd.OutOrStdout(), response, format)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries work the same
// with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func searchViaHTTP(ctx context.Context, serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(serverURL, "/")+"/api/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}
