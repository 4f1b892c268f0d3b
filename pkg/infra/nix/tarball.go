package nix

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
)

// buildTarball produces a gzip tarball of the source directory. Every
// entry carries lastModified as its mtime and no owner information, so the
// same tree state always hashes to the same SHA-256.
func buildTarball(source string, lastModified int64) (*model.Tarball, error) {
	base := filepath.Base(source)
	mtime := time.Unix(lastModified, 0)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = filepath.Join(base, rel)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(name)
		if d.IsDir() {
			header.Name += "/"
		}
		header.ModTime = mtime
		header.AccessTime = time.Time{}
		header.ChangeTime = time.Time{}
		header.Uid = 0
		header.Gid = 0
		header.Uname = ""
		header.Gname = ""
		header.Format = tar.FormatPAX

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to add the source tree to the tarball")
	}

	if err := tw.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to finish the tarball")
	}
	if err := gz.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to finish the gzip stream")
	}

	sum := sha256.Sum256(buf.Bytes())
	return &model.Tarball{
		Bytes:      buf.Bytes(),
		HashBase64: base64.StdEncoding.EncodeToString(sum[:]),
	}, nil
}
