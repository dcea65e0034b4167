package endpoint

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/toolbox"
)

// modeArg decodes permission bits, which arrive as a plain number.
func modeArg(args []interface{}, index int) (os.FileMode, error) {
	if index >= len(args) || args[index] == nil {
		return 0, fmt.Errorf("missing mode argument %d", index)
	}
	return os.FileMode(toolbox.AsInt(args[index])), nil
}

// chmod rewrites the file with the requested permission bits. Uploading
// with the new mode works on every scheme the file service supports,
// unlike a host-level chmod.
func (d *deployment) chmod(ctx context.Context, rel string, mode os.FileMode) error {
	target, err := d.resolve(rel)
	if err != nil {
		return err
	}
	data, err := d.service.fs.DownloadWithURL(ctx, target)
	if err != nil {
		return fmt.Errorf("chmod %s: %w", rel, err)
	}
	return d.service.fs.Upload(ctx, target, mode, bytes.NewReader(data))
}

// isDir reports whether rel names a sandbox directory.
func (d *deployment) isDir(ctx context.Context, rel string) (bool, error) {
	target, err := d.resolve(rel)
	if err != nil {
		return false, err
	}
	exists, _ := d.service.fs.Exists(ctx, target)
	if !exists {
		return false, nil
	}
	object, err := d.service.fs.Object(ctx, target)
	if err != nil {
		return false, err
	}
	return object.IsDir(), nil
}

// listDir lists the names inside a sandbox directory.
func (d *deployment) listDir(ctx context.Context, rel string) ([]string, error) {
	target, err := d.resolve(rel)
	if err != nil {
		return nil, err
	}
	objects, err := d.service.fs.List(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("listdir %s: %w", rel, err)
	}
	names := make([]string, 0, len(objects))
	for _, object := range objects {
		if isSelf(object, target) {
			continue
		}
		names = append(names, object.Name())
	}
	return names, nil
}

// remove deletes a sandbox file.
func (d *deployment) remove(ctx context.Context, rel string) error {
	target, err := d.resolve(rel)
	if err != nil {
		return err
	}
	exists, _ := d.service.fs.Exists(ctx, target)
	if !exists {
		return fmt.Errorf("remove %s: no such file", rel)
	}
	return d.service.fs.Delete(ctx, target)
}

// packZipfile archives sandbox files matching the glob-style patterns
// into filename and reports how many files and bytes it packed.
func (d *deployment) packZipfile(ctx context.Context, patterns []string, filename string) (interface{}, error) {
	target, err := d.resolve(filename)
	if err != nil {
		return nil, err
	}
	objects, err := d.service.fs.List(ctx, d.sandboxURL)
	if err != nil {
		return nil, fmt.Errorf("pack_zipfile: %w", err)
	}

	buffer := new(bytes.Buffer)
	writer := zip.NewWriter(buffer)
	packed := 0
	var total int64
	for _, object := range objects {
		if object.IsDir() || isSelf(object, d.sandboxURL) {
			continue
		}
		if !matchesAny(patterns, object.Name()) {
			continue
		}
		data, err := d.service.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return nil, fmt.Errorf("pack_zipfile %s: %w", object.Name(), err)
		}
		entry, err := writer.Create(object.Name())
		if err != nil {
			return nil, err
		}
		if _, err := entry.Write(data); err != nil {
			return nil, err
		}
		packed++
		total += int64(len(data))
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	if err := d.service.fs.Upload(ctx, target, file.DefaultFileOsMode, bytes.NewReader(buffer.Bytes())); err != nil {
		return nil, fmt.Errorf("pack_zipfile %s: %w", filename, err)
	}
	return map[string]interface{}{"files": packed, "bytes": total}, nil
}

// unpackZipfile extracts a sandbox archive, refusing entries that would
// escape the sandbox.
func (d *deployment) unpackZipfile(ctx context.Context, filename string) (interface{}, error) {
	source, err := d.resolve(filename)
	if err != nil {
		return nil, err
	}
	data, err := d.service.fs.DownloadWithURL(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("unpack_zipfile %s: %w", filename, err)
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unpack_zipfile %s: %w", filename, err)
	}
	unpacked := 0
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		target, err := d.resolve(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("unpack_zipfile %s: %w", filename, err)
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		mode := entry.Mode()
		if mode == 0 {
			mode = file.DefaultFileOsMode
		}
		if err := d.service.fs.Upload(ctx, target, mode, bytes.NewReader(content)); err != nil {
			return nil, fmt.Errorf("unpack_zipfile %s: %w", entry.Name, err)
		}
		unpacked++
	}
	return map[string]interface{}{"files": unpacked}, nil
}

// matchesAny reports whether name matches at least one glob pattern.
func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// isSelf filters the listed directory out of its own listing.
func isSelf(object storage.Object, dirURL string) bool {
	return strings.TrimRight(object.URL(), "/") == strings.TrimRight(dirURL, "/")
}
