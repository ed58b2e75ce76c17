package net

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v83/github"
)

// GitHubFile identifies a file in a GitHub repository.
type GitHubFile struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

func (f GitHubFile) String() string {
	s := f.Owner + "/" + f.Repo + "/" + f.Path
	if f.Ref != "" {
		s += "@" + f.Ref
	}
	return s
}

// ParseGitHubFile parses owner/repo/path[@ref].
func ParseGitHubFile(v string) (*GitHubFile, error) {
	var f GitHubFile
	spec := strings.TrimSpace(v)
	if i := strings.LastIndex(spec, "@"); i > 0 {
		f.Ref = spec[i+1:]
		spec = spec[:i]
	}

	parts := strings.SplitN(strings.Trim(spec, "/"), "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("invalid GitHub file %q, expected owner/repo/path[@ref]", v)
	}
	f.Owner, f.Repo, f.Path = parts[0], parts[1], parts[2]
	return &f, nil
}

// DownloadGitHubFile saves a repository file to path. Pass an OAuth client
// for private repositories; a nil client makes anonymous requests.
func DownloadGitHubFile(ctx context.Context, client *http.Client, file *GitHubFile, path string) error {
	return downloadGitHubFile(ctx, github.NewClient(client), file, path)
}

func downloadGitHubFile(ctx context.Context, gh *github.Client, file *GitHubFile, path string) error {
	if file == nil {
		return fmt.Errorf("GitHub file required")
	}

	var opts *github.RepositoryContentGetOptions
	if file.Ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: file.Ref}
	}

	rc, resp, err := gh.Repositories.DownloadContents(ctx, file.Owner, file.Repo, file.Path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return ErrorURLNotFound
		}
		return fmt.Errorf("error downloading %s: %w", file, err)
	}
	defer rc.Close()

	return writeFile(path, rc)
}
