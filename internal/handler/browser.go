package handler

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// maxEditSize bounds the body of an edit form
const maxEditSize = 10 << 20

// Folder is one browsable directory
type Folder struct {
	Name string
	Dir  string
}

// StatusText supplies the current status line
type StatusText interface {
	Get() string
}

// Browser serves the folder index, listings, downloads and the editor
type Browser struct {
	folders []Folder
	dirs    map[string]string
	status  StatusText
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewBrowser creates a browser over folders. status may be nil.
func NewBrowser(folders []Folder, status StatusText, log logrus.FieldLogger) *Browser {
	dirs := make(map[string]string, len(folders))
	for _, f := range folders {
		dirs[f.Name] = f.Dir
	}
	return &Browser{
		folders: folders,
		dirs:    dirs,
		status:  status,
		log:     log,
		now:     time.Now,
	}
}

type fileEntry struct {
	Name string
	Size string
	Age  string
}

// Index lists the configured folders
func (b *Browser) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	names := make([]string, 0, len(b.folders))
	for _, f := range b.folders {
		names = append(names, f.Name)
	}
	status := ""
	if b.status != nil {
		status = b.status.Get()
	}

	b.render(w, "index", map[string]any{"Folders": names, "Status": status})
}

// List shows the regular files of a folder, creating it if missing
func (b *Browser) List(w http.ResponseWriter, r *http.Request) {
	folder := r.PathValue("folder")
	dir, ok := b.dirs[folder]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		b.log.WithError(err).WithField("dir", dir).Error("Browser: cannot create folder")
		http.Error(w, "cannot create folder", http.StatusInternalServerError)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		b.log.WithError(err).WithField("dir", dir).Error("Browser: cannot read folder")
		http.Error(w, "cannot read folder", http.StatusInternalServerError)
		return
	}

	files := make([]fileEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{
			Name: e.Name(),
			Size: humanize.Bytes(uint64(info.Size())),
			Age:  humanize.RelTime(info.ModTime(), b.now(), "ago", "from now"),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	b.render(w, "list", map[string]any{"Folder": folder, "Files": files})
}

// Download sends one file as an attachment
func (b *Browser) Download(w http.ResponseWriter, r *http.Request) {
	path, name, ok := b.resolveFile(w, r)
	if !ok {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// DownloadAll streams every file under a folder as a zip archive
func (b *Browser) DownloadAll(w http.ResponseWriter, r *http.Request) {
	folder := r.PathValue("folder")
	dir, ok := b.dirs[folder]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", folder+"_all_files.zip"))

	zw := zip.NewWriter(w)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addToZip(zw, path, filepath.ToSlash(rel))
	})
	if err != nil {
		// headers are gone; the client sees a truncated archive
		b.log.WithError(err).WithField("folder", folder).Error("Browser: zip failed")
		return
	}
	if err := zw.Close(); err != nil {
		b.log.WithError(err).WithField("folder", folder).Error("Browser: zip close failed")
	}
}

func addToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, f)
	return err
}

// View renders a file as text
func (b *Browser) View(w http.ResponseWriter, r *http.Request) {
	path, name, ok := b.resolveFile(w, r)
	if !ok {
		return
	}

	content, err := readText(path)
	if err != nil {
		b.log.WithError(err).WithField("path", path).Warn("Browser: cannot read file")
		http.Error(w, "cannot read file", http.StatusInternalServerError)
		return
	}

	b.render(w, "view", map[string]any{"Folder": r.PathValue("folder"), "Name": name, "Content": content})
}

// Edit shows the editor form for a file
func (b *Browser) Edit(w http.ResponseWriter, r *http.Request) {
	path, name, ok := b.resolveFile(w, r)
	if !ok {
		return
	}

	content, err := readText(path)
	if err != nil {
		b.log.WithError(err).WithField("path", path).Warn("Browser: cannot read file")
		http.Error(w, "cannot read file", http.StatusInternalServerError)
		return
	}

	b.render(w, "edit", map[string]any{"Folder": r.PathValue("folder"), "Name": name, "Content": content})
}

// Save replaces a file's contents and redirects to its view
func (b *Browser) Save(w http.ResponseWriter, r *http.Request) {
	path, name, ok := b.resolveFile(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEditSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	content := r.PostFormValue("content")

	info, err := os.Stat(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		b.log.WithError(err).WithField("path", path).Error("Browser: cannot save file")
		http.Error(w, "cannot save file", http.StatusInternalServerError)
		return
	}

	b.log.WithField("path", path).Info("Browser: file saved")
	http.Redirect(w, r, "/view/"+r.PathValue("folder")+"/"+name, http.StatusSeeOther)
}

// resolveFile maps {folder}/{file} to an existing regular file.
// It writes a 404 and returns false when that is not possible.
func (b *Browser) resolveFile(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	dir, ok := b.dirs[r.PathValue("folder")]
	if !ok {
		http.NotFound(w, r)
		return "", "", false
	}

	name := r.PathValue("file")
	if !validFileName(name) {
		http.NotFound(w, r)
		return "", "", false
	}

	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return "", "", false
	}
	return path, name, true
}

func validFileName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func (b *Browser) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		b.log.WithError(err).WithField("template", name).Error("Browser: render failed")
	}
}
