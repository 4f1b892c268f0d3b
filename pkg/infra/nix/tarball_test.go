package nix

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

func writeTestTree(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "my-flake")
	gt.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "flake.nix"), []byte("{ }"), 0o644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "data.txt"), []byte("payload"), 0o644))
	return dir
}

func TestBuildTarball(t *testing.T) {
	dir := writeTestTree(t)
	lastModified := int64(1700000000)

	tarball, err := buildTarball(dir, lastModified)
	gt.NoError(t, err)

	sum := sha256.Sum256(tarball.Bytes)
	gt.Value(t, tarball.HashBase64).Equal(base64.StdEncoding.EncodeToString(sum[:]))

	gz, err := gzip.NewReader(bytes.NewReader(tarball.Bytes))
	gt.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := map[string]*tar.Header{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		gt.NoError(t, err)
		entries[header.Name] = header
	}

	gt.Value(t, entries["my-flake/"]).NotNil()
	gt.Value(t, entries["my-flake/flake.nix"]).NotNil()
	gt.Value(t, entries["my-flake/nested/"]).NotNil()
	gt.Value(t, entries["my-flake/nested/data.txt"]).NotNil()

	for _, header := range entries {
		gt.True(t, header.ModTime.Equal(time.Unix(lastModified, 0)))
		gt.Number(t, header.Uid).Equal(0)
		gt.Number(t, header.Gid).Equal(0)
		gt.Value(t, header.Uname).Equal("")
	}
}

func TestBuildTarballIsReproducible(t *testing.T) {
	dir := writeTestTree(t)

	first, err := buildTarball(dir, 1700000000)
	gt.NoError(t, err)

	// Touching the files on disk must not change the archive hash.
	future := time.Now().Add(time.Hour)
	gt.NoError(t, os.Chtimes(filepath.Join(dir, "flake.nix"), future, future))

	second, err := buildTarball(dir, 1700000000)
	gt.NoError(t, err)
	gt.Value(t, second.HashBase64).Equal(first.HashBase64)
}

func TestBuildTarballSymlink(t *testing.T) {
	dir := writeTestTree(t)
	gt.NoError(t, os.Symlink("flake.nix", filepath.Join(dir, "link.nix")))

	tarball, err := buildTarball(dir, 1700000000)
	gt.NoError(t, err)

	gz, err := gzip.NewReader(bytes.NewReader(tarball.Bytes))
	gt.NoError(t, err)
	tr := tar.NewReader(gz)

	var found bool
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		gt.NoError(t, err)
		if header.Name == "my-flake/link.nix" {
			found = true
			gt.Number(t, int(header.Typeflag)).Equal(int(tar.TypeSymlink))
			gt.Value(t, header.Linkname).Equal("flake.nix")
		}
	}
	gt.True(t, found)
}
