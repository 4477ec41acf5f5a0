package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_InvalidInvocation(t *testing.T) {
	assert.Equal(t, exitInvalidInvocation, run([]string{"-d", "-f"}))
	assert.Equal(t, exitInvalidInvocation, run([]string{}))
	assert.Equal(t, exitInvalidInvocation, run([]string{"-f", "--start", "yesterday"}))
}

func TestRun_Help(t *testing.T) {
	assert.Equal(t, exitSuccess, run([]string{"-h"}))
}

func TestRun_Filelist(t *testing.T) {
	root := t.TempDir()
	extracted := filepath.Join(root, "extracted")
	require.NoError(t, os.Mkdir(extracted, 0o755))
	for _, name := range []string{"FP_20140101.gdx", "FP_20140215.gdx", "FP_20131231.gdx", "junk.gdx"} {
		require.NoError(t, os.WriteFile(filepath.Join(extracted, name), nil, 0o644))
	}
	manifest := filepath.Join(root, "FileNameList.inc")
	metricsFile := filepath.Join(root, "gdxgrab.prom")

	code := run([]string{"-f", "--gdx-path", root, "--manifest", manifest,
		"-s", "2014-01", "-e", "2014-01", "--metrics-file", metricsFile, "--log-level", "error"})
	require.Equal(t, exitSuccess, code)

	b, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Equal(t, "FP_20140101\n", string(b))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "gdxgrab_manifest_entries 1")
}

func TestRun_FilelistMissingDir(t *testing.T) {
	root := t.TempDir()
	code := run([]string{"-f", "--gdx-path", root, "--manifest", filepath.Join(root, "FileNameList.inc"), "--log-level", "error"})
	assert.Equal(t, exitFailure, code)
}

func TestRun_DownloadCurrentMonth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Datasets/Wholesale/Final_pricing/GDX":
			fmt.Fprint(w, `<a href="/Datasets/Wholesale/Final_pricing/GDX/FP_20140301_F.gdx">f</a>`+
				`<a href="/Datasets/Wholesale/Final_pricing/GDX/FP_20140302_I.gdx">i</a>`)
		case "/Datasets/Wholesale/Final_pricing/GDX/FP_20140301_F.gdx":
			fmt.Fprint(w, "gdx")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	root := t.TempDir()
	code := run([]string{"-d", "--gdx-host", srv.URL, "--gdx-path", root, "--rate-limit", "0", "--log-level", "error"})
	require.Equal(t, exitSuccess, code)

	assert.FileExists(t, filepath.Join(root, "extracted", "FP_20140301_F.gdx"))
	assert.NoFileExists(t, filepath.Join(root, "extracted", "FP_20140302_I.gdx"))
}

func TestRun_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Datasets/Wholesale/Final_pricing/GDX" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<a href="FP_20140301_F.gdx">f</a>`)
	}))

	assert.Equal(t, exitSuccess, run([]string{"health", "--gdx-host", srv.URL, "--log-level", "error"}))

	srv.Close()
	assert.Equal(t, exitFailure, run([]string{"health", "--gdx-host", srv.URL, "--log-level", "error", "--timeout", "1s"}))
}
