package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// copyTree recursively copies every entry under source
// into target, skipping hidden dotfiles. File contents
// are copied byte-for-byte.
func copyTree(source string, target string) error {
	const errCtx = "copying tree"

	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		src := filepath.Join(source, entry.Name())
		dst := filepath.Join(target, entry.Name())

		if entry.IsDir() {
			if err := copyTree(src, dst); err != nil {
				return err
			}

			continue
		}

		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	return nil
}

// copyFile copies one regular file, preserving its
// permission bits.
func copyFile(src string, dst string) (retErr error) {
	const errCtx = "copying file"

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	in, err := os.Open(src) //nolint:gosec // path walked from bundle source
	if err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	defer func() {
		if closeErr := in.Close(); closeErr != nil &&
			retErr == nil {
			retErr = fmt.Errorf(
				"%s: %w", errCtx, closeErr,
			)
		}
	}()

	out, err := os.OpenFile(
		dst,
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
		info.Mode().Perm(),
	)
	if err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil &&
			retErr == nil {
			retErr = fmt.Errorf(
				"%s: %w", errCtx, closeErr,
			)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return nil
}
