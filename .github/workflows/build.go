package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	buildDir = "./build"
	program  = "go-bpmn-core"
)

// targets lists the platforms, a release is built for.
var targets = []target{
	{goos: "darwin", goarch: "arm64"},
	{goos: "linux", goarch: "amd64"},
	{goos: "linux", goarch: "arm64"},
	{goos: "windows", goarch: "amd64"},
}

type target struct {
	goos   string
	goarch string
}

func (t target) archive() string {
	return fmt.Sprintf("%s-%s-%s.tar.gz", program, t.goos, t.goarch)
}

func (t target) binary() string {
	if t.goos == "windows" {
		return program + ".exe"
	}
	return program
}

func (t target) String() string {
	return t.goos + "-" + t.goarch
}

func main() {
	log.SetFlags(0)

	flags := flag.NewFlagSet("build", flag.ContinueOnError)
	flags.SetOutput(log.Writer())

	var (
		skipTests bool
		version   string
	)
	flags.BoolVar(&skipTests, "skip-tests", false, "skip go vet and the short tests")
	flags.StringVar(&version, "tag-name", "", "release version, written to main.version")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if version == "" {
		log.Fatal("tag name is required")
	}

	if err := os.RemoveAll(buildDir); err != nil {
		log.Fatalf("failed to delete %s: %v", buildDir, err)
	}
	if err := os.MkdirAll(buildDir, 0700); err != nil {
		log.Fatalf("failed to create %s: %v", buildDir, err)
	}

	if !skipTests {
		// pg tests are skipped with -short
		mustRun("check", exec.Command("go", "vet", "./..."))
		mustRun("check", exec.Command("go", "test", "-short", "./..."))
	}

	archives := make([]string, 0, len(targets))
	for _, t := range targets {
		output := filepath.Join(buildDir, t.String(), t.binary())

		cmd := exec.Command("go", "build", "-trimpath", "-ldflags", "-s -w -X main.version="+version, "-o", output, "./cmd/"+program)
		cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOOS="+t.goos, "GOARCH="+t.goarch)
		mustRun(t.String(), cmd)

		cmd = exec.Command("tar", "czf", t.archive(), "-C", t.String(), t.binary())
		cmd.Dir = buildDir
		mustRun(t.String(), cmd)

		archives = append(archives, t.archive())
	}

	cmd := exec.Command("sha256sum", archives...)
	cmd.Dir = buildDir

	checksums := mustRun("checksum", cmd)
	if err := os.WriteFile(filepath.Join(buildDir, "SHA256SUMS"), checksums, 0600); err != nil {
		log.Fatalf("failed to write checksums: %v", err)
	}
}

// mustRun runs a command and returns its standard output. If the command fails, the build is aborted.
func mustRun(step string, cmd *exec.Cmd) []byte {
	log.Printf("%s: %s", step, strings.Join(cmd.Args, " "))

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) != 0 {
			log.Print(string(exitErr.Stderr))
		}
		log.Fatalf("%s: failed to run %s: %v", step, cmd.Args[0], err)
	}
	return out
}
