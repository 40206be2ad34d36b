package api

import (
	"os"
	"strings"

	"github.com/nixlim/herd-top/internal/config"
	"github.com/nixlim/herd-top/internal/errors"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() (string, error)
}

type StaticToken string

func (s StaticToken) Token() (string, error) { return string(s), nil }

// FileToken re-reads the file on every call so an external login helper can
// rotate the token while herd-top runs.
type FileToken struct {
	Path string
}

func (f FileToken) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", errors.WithHint(
			errors.Wrapf(err, "reading token file %s", f.Path),
			"set api.token_file to a readable file or export HERDTOP_TOKEN",
		)
	}
	return strings.TrimSpace(string(data)), nil
}

// TokenSourceFromConfig prefers an inline token over a token file.
func TokenSourceFromConfig(cfg config.APIConfig) TokenSource {
	if cfg.Token != "" {
		return StaticToken(cfg.Token)
	}
	if cfg.TokenFile != "" {
		return FileToken{Path: config.ExpandTilde(cfg.TokenFile)}
	}
	return StaticToken("")
}
