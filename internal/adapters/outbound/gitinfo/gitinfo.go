package gitinfo

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Reader implements domain.GitInfo using go-git.
type Reader struct{}

func New() *Reader {
	return &Reader{}
}

// CommitHash returns the HEAD commit of the repository at repoPath,
// searching parent directories for the .git folder.
func (g *Reader) CommitHash(repoPath string) (string, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("opening git repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}

	return head.Hash().String(), nil
}
