package main

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// DataFile is a downloadable CCD file and the CSV it unpacks to
type DataFile struct {
	Filename string
	URL      string
}

// DirectoryFile is the CCD public school directory the local backend loads
var DirectoryFile = DataFile{
	Filename: "ccd_sch_029_2324_w_1a_073124.csv",
	URL:      "https://nces.ed.gov/ccd/Data/zip/ccd_sch_029_2324_w_1a_073124.zip",
}

// DataFileMissing reports whether file is absent from dataDir
func DataFileMissing(dataDir string, file DataFile) bool {
	_, err := os.Stat(filepath.Join(dataDir, file.Filename))
	return os.IsNotExist(err)
}

// isInteractive reports whether stdin and stdout are both terminals
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// PromptUserForDownload asks on out whether file should be fetched and reads
// the answer from in.
func PromptUserForDownload(in io.Reader, out io.Writer, file DataFile) bool {
	fmt.Fprintf(out, "\n⚠️  Missing data file: %s\n", file.Filename)
	fmt.Fprintln(out, "The local backend needs the CCD school directory to search districts.")
	fmt.Fprint(out, "\nWould you like to download it now? (y/N): ")

	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))

	return response == "y" || response == "yes"
}

// progressCounter counts bytes as they're written and displays progress
type progressCounter struct {
	out     io.Writer
	name    string
	total   int64
	current int64
}

func (pc *progressCounter) Write(p []byte) (int, error) {
	n := len(p)
	pc.current += int64(n)

	currentMB := pc.current / 1024 / 1024
	if pc.total > 0 {
		fmt.Fprintf(pc.out, "\r   Downloading %s... %.1f%% (%d/%d MB)",
			pc.name,
			float64(pc.current)/float64(pc.total)*100,
			currentMB,
			pc.total/1024/1024)
	} else {
		fmt.Fprintf(pc.out, "\r   Downloading %s... %d MB downloaded", pc.name, currentMB)
	}
	return n, nil
}

// downloadFile fetches url into path, reporting progress on out
func downloadFile(ctx context.Context, client *http.Client, url, path string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	counter := &progressCounter{out: out, name: filepath.Base(path), total: resp.ContentLength}
	_, err = io.Copy(f, io.TeeReader(resp.Body, counter))
	fmt.Fprintln(out)
	return err
}

// unzipCSV extracts the CSV members of a zip file into dest
func unzipCSV(src, dest string, out io.Writer) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}

		fpath := filepath.Join(dest, filepath.Base(f.Name))
		if err := extractFile(f, fpath); err != nil {
			return err
		}
		fmt.Fprintf(out, "   ✓ Extracted: %s\n", filepath.Base(fpath))
	}
	return nil
}

func extractFile(f *zip.File, path string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	outFile, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, rc); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}

// DownloadAndExtract fetches a data file's zip and unpacks its CSV into dataDir
func DownloadAndExtract(ctx context.Context, client *http.Client, dataDir string, file DataFile, out io.Writer) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tempDir, err := os.MkdirTemp(dataDir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	fmt.Fprintf(out, "\n📥 Downloading %s...\n", file.Filename)

	zipPath := filepath.Join(tempDir, filepath.Base(file.URL))
	if err := downloadFile(ctx, client, file.URL, zipPath, out); err != nil {
		if logger != nil {
			logger.Error("Download failed", "error", err, "url", file.URL)
		}
		return fmt.Errorf("failed to download %s: %w", file.URL, err)
	}

	fmt.Fprintln(out, "   Extracting...")
	if err := unzipCSV(zipPath, dataDir, out); err != nil {
		return fmt.Errorf("failed to extract %s: %w", zipPath, err)
	}

	if DataFileMissing(dataDir, file) {
		return fmt.Errorf("archive %s did not contain %s", file.URL, file.Filename)
	}

	if logger != nil {
		logger.Info("Data file downloaded", "file", file.Filename, "data_dir", dataDir)
	}
	fmt.Fprintln(out, "✅ Data file downloaded and extracted successfully!")
	return nil
}
