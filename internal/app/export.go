// File: internal/app/export.go (complete file)

package app

import (
	"errors"

	"github.com/baptistax/camlinkcheck/internal/report"
	"github.com/baptistax/camlinkcheck/internal/runctx"
)

// Export writes report.json, report.txt and log.txt under <baseDir>/run_<id>/
// and returns the run directory. d.RunID is replaced by the directory's id.
func Export(baseDir string, d *report.Diagnosis) (string, error) {
	rc, err := runctx.New(baseDir)
	if err != nil {
		return "", err
	}
	d.RunID = rc.RunID

	err = errors.Join(
		report.WriteJSON(rc.Path("report.json"), *d),
		report.WriteText(rc.Path("report.txt"), *d),
		report.WriteLog(rc.Path("log.txt"), d.Logs),
	)
	return rc.OutputDir, err
}
