package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tessapp/ota/internal/errs"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/prompter"
	"github.com/tessapp/ota/internal/store"
	"github.com/tessapp/ota/internal/utils"
)

// Handle is an opaque token proving the user granted write access to a
// shared directory. Reusable across process restarts.
type Handle string

// DirectoryGrant abstracts the platform's "ask the user for write access to
// a shared, user-visible folder" flow.
type DirectoryGrant interface {
	// Request runs the one-time consent flow. ErrPermissionDenied when the
	// user declines.
	Request(ctx context.Context) (Handle, error)
	// Open resolves a previously obtained handle to a writable directory.
	Open(handle Handle) (string, error)
}

// Publisher copies a finished download into a user-visible directory so the
// user can reach it with a file browser. Best-effort throughout: the cache
// copy remains authoritative and installation never depends on this.
type Publisher struct {
	Grant DirectoryGrant
	KV    store.KV
}

func New(grant DirectoryGrant, kv store.KV) *Publisher {
	if kv == nil {
		kv = store.NewMemory()
	}
	return &Publisher{Grant: grant, KV: kv}
}

// Publish copies the artifact at cachePath into the granted shared directory
// under fileName and returns the resulting path. The grant handle is
// persisted on first success and reused afterwards; the user is prompted at
// most once.
func (p *Publisher) Publish(ctx context.Context, cachePath, fileName string) (string, error) {
	dir, err := p.grantedDir(ctx)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dir, fileName)
	if err := copyFile(cachePath, dst); err != nil {
		return "", fmt.Errorf("failed to publish artifact: %w", err)
	}

	logger.Debug("published artifact to %s", dst)
	return dst, nil
}

func (p *Publisher) grantedDir(ctx context.Context) (string, error) {
	if raw, ok := p.KV.Get(store.KeyPublishedDirGrant); ok && raw != "" {
		dir, err := p.Grant.Open(Handle(raw))
		if err == nil {
			return dir, nil
		}
		// Stale grant: fall through to a fresh request.
		logger.Debug("stored directory grant no longer usable: %v", err)
		p.KV.Delete(store.KeyPublishedDirGrant)
	}

	handle, err := p.Grant.Request(ctx)
	if err != nil {
		return "", err
	}
	dir, err := p.Grant.Open(handle)
	if err != nil {
		return "", fmt.Errorf("granted directory unusable: %w", err)
	}
	p.KV.Set(store.KeyPublishedDirGrant, string(handle))
	return dir, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer utils.Close(in)

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close failed: %w", cerr)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// PromptedDirGrant is the CLI-host grant: a fixed shared directory guarded
// by a single interactive confirmation.
type PromptedDirGrant struct {
	Dir      string
	Prompter prompter.Prompter
}

func (g *PromptedDirGrant) Request(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Prompter != nil {
		ok, err := g.Prompter.Confirm(fmt.Sprintf("Allow saving update files to %s?", g.Dir))
		if err != nil {
			return "", fmt.Errorf("grant prompt failed: %w", err)
		}
		if !ok {
			return "", errs.ErrPermissionDenied
		}
	}
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create shared directory: %w", err)
	}
	return Handle(g.Dir), nil
}

func (g *PromptedDirGrant) Open(handle Handle) (string, error) {
	info, err := os.Stat(string(handle))
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("grant handle %q is not a directory", handle)
	}
	return string(handle), nil
}
