package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wadesk/wadesk/internal/config"
	"github.com/wadesk/wadesk/internal/db"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system prerequisites and configuration",
		Long:  "Runs diagnostic checks on wadesk prerequisites: config, encoder binary, public directory, database, and schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "wadesk.yaml", "path to wadesk config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Wadesk Doctor")
	fmt.Fprintln(out, "=============")

	var results []checkResult

	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	if cfg != nil {
		results = append(results, checkEncoder(cfg.Media.FFmpeg))
		results = append(results, checkPublicDir(cfg.Media.PublicDir))
		results = append(results, checkDatabase(cfg))
	} else {
		results = append(results, checkResult{"Encoder", "FAIL", "skipped (no config)"})
		results = append(results, checkResult{"Public dir", "FAIL", "skipped (no config)"})
		results = append(results, checkResult{"Database", "FAIL", "skipped (no config)"})
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warnings\n", passed, failed, warned)
	if failed > 0 {
		return fmt.Errorf("doctor: %d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%-4s] %-12s %s\n", r.status, r.name, r.detail)
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config", "FAIL", err.Error()}
	}
	return cfg, checkResult{"Config", "PASS", path}
}

func checkEncoder(ffmpeg string) checkResult {
	path, err := exec.LookPath(ffmpeg)
	if err != nil {
		return checkResult{"Encoder", "FAIL", fmt.Sprintf("%s not found in PATH", ffmpeg)}
	}
	return checkResult{"Encoder", "PASS", path}
}

// checkPublicDir verifies the shared media directory exists and is writable.
func checkPublicDir(dir string) checkResult {
	info, err := os.Stat(dir)
	if err != nil {
		return checkResult{"Public dir", "WARN", fmt.Sprintf("%s does not exist (serve will create it)", dir)}
	}
	if !info.IsDir() {
		return checkResult{"Public dir", "FAIL", fmt.Sprintf("%s is not a directory", dir)}
	}

	probe := filepath.Join(dir, ".wadesk-doctor")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return checkResult{"Public dir", "FAIL", fmt.Sprintf("%s is not writable", dir)}
	}
	os.Remove(probe)
	return checkResult{"Public dir", "PASS", dir}
}

func checkDatabase(cfg *config.Config) checkResult {
	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return checkResult{"Database", "FAIL", err.Error()}
	}

	missing := 0
	for _, model := range db.AllModels() {
		if !gdb.Migrator().HasTable(model) {
			missing++
		}
	}
	if missing > 0 {
		return checkResult{"Database", "WARN", fmt.Sprintf("%d table(s) missing, run `wadesk migrate`", missing)}
	}
	return checkResult{"Database", "PASS", fmt.Sprintf("%s:%d/%s", cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)}
}
