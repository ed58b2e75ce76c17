package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

var ErrorURLNotFound = errors.New("URL not found")

// Download saves the content at url to path using client.
// A nil client uses GetHTTPClient.
func Download(ctx context.Context, client *http.Client, url, path string) error {
	if client == nil {
		c, err := GetHTTPClient()
		if err != nil {
			return fmt.Errorf("error creating HTTP client: %w", err)
		}
		client = c
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	req.Header.Set("User-Agent", clientAgent)

	resp, err := client.Do(req) //nolint:gosec // URL is provided by the operator
	if err != nil {
		return fmt.Errorf("error downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrorURLNotFound
	}

	if resp.StatusCode != http.StatusOK {
		PrintHTTPResponse(resp)
		return fmt.Errorf("error downloading file (status: %d - %s): %s", resp.StatusCode, resp.Status, url)
	}

	return writeFile(path, resp.Body)
}

func writeFile(path string, r io.Reader) (retErr error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing file: %w", cerr)
		}
	}()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("error saving downloaded content to file: %w", err)
	}
	return nil
}
