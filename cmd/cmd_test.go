package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templine/internal/build"
	"github.com/conneroisu/templine/internal/config"
	"github.com/conneroisu/templine/internal/scanner"
	"github.com/conneroisu/templine/internal/testutils"
	"github.com/conneroisu/templine/internal/watcher"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// executeCommand runs the root command with fresh global state and returns
// what it wrote to stdout.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	resetFlags(rootCmd)
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))

	err := rootCmd.Execute()
	return stdout.String(), err
}

func TestCompileCommand(t *testing.T) {
	out, err := executeCommand(t, "A\n<% x %>\nB", "compile", "--name", "t")
	require.NoError(t, err)
	assert.Equal(t, "//tmpl:encoding utf-8\nout := \"\"; out.text(\"A\\n\")\n; exec(\" x \"); out.text(\"\\n\")\n; out.text(\"B\")\n; out.result()\n", out)

	rewritten, err := executeCommand(t, "A\n<% x %>\nB", "compile", "--name", "t", "--rewrite")
	require.NoError(t, err)
	assert.Contains(t, rewritten, `out := lineno.New("t")`)
	assert.NotContains(t, rewritten, "out.text(")

	again, err := executeCommand(t, out, "rewrite", "--name", "t")
	require.NoError(t, err)
	assert.Equal(t, rewritten, again)

	twice, err := executeCommand(t, again, "rewrite", "--name", "t")
	require.NoError(t, err)
	assert.Equal(t, again, twice)
}

func TestCompileCommandErrors(t *testing.T) {
	_, err := executeCommand(t, "A <% x", "compile", "--name", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated tag")

	_, err = executeCommand(t, "", "compile", "does-not-exist.erb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.erb")
}

func TestRenderCommand(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		expected string
	}{
		{
			name:     "annotated",
			stdin:    "A\n<% x -%>\nB\n",
			args:     []string{"render", "--name", "t"},
			expected: "#line 1 \"t\"\nA\n#line 3 \"t\"\nB\n",
		},
		{
			name:     "plain",
			stdin:    "A\n<% x -%>\nB\n",
			args:     []string{"render", "--name", "t", "--plain"},
			expected: "A\nB\n",
		},
		{
			name:     "inline data",
			stdin:    "Hi <%= user.name %>!",
			args:     []string{"render", "--name", "t", "--data", `{"user": {"name": "Ann"}}`},
			expected: "#line 1 \"t\"\nHi Ann!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(t, tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestRenderCommandDataFileAndOutput(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data.yml")
	tmpl := filepath.Join(dir, "page.erb")
	target := filepath.Join(dir, "out", "page.txt")
	testutils.WriteFile(t, data, "user:\n  name: Bo\n")
	testutils.WriteFile(t, tmpl, "<% x -%>\nHi <%= user.name %>\n")

	out, err := executeCommand(t, "", "render", tmpl, "--name", "page.erb", "--data-file", data, "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	testutils.AssertFileContent(t, target, "#line 2 \"page.erb\"\nHi Bo\n")
}

func TestRenderCommandProgramInput(t *testing.T) {
	prog, err := executeCommand(t, "A\n<% x -%>\nB\n", "compile", "--name", "t")
	require.NoError(t, err)

	out, err := executeCommand(t, prog, "render", "--program", "--name", "t")
	require.NoError(t, err)
	assert.Equal(t, "#line 1 \"t\"\nA\n#line 3 \"t\"\nB\n", out)
}

func TestRenderCommandFlagValidation(t *testing.T) {
	_, err := executeCommand(t, "x", "render", "--encoding", "no-such-encoding")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")

	_, err = executeCommand(t, "x", "render", "--data", "{}", "--data-file", "d.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot specify both")

	_, err = executeCommand(t, "x", "render", "--data", "{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestStripCommand(t *testing.T) {
	annotated, err := executeCommand(t, "A\n<% x -%>\nB\n", "render", "--name", "t")
	require.NoError(t, err)

	out, err := executeCommand(t, annotated, "strip")
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n", out)
}

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutils.WriteFile(t, filepath.Join(dir, "views", "a.erb"), "A\n<% x -%>\nB\n")
	testutils.WriteFile(t, filepath.Join(dir, "views", "b.tmpl"), "Hi <%= name %>\n")
	testutils.WriteFile(t, filepath.Join(dir, "views", "skip.txt"), "not a template")
	testutils.WriteFile(t, filepath.Join(dir, "data.json"), `{"name": "Cy"}`)

	out, err := executeCommand(t, "", "build", "--render", "--data-file", "data.json")
	require.NoError(t, err)
	assert.Contains(t, out, "views/a.erb")
	assert.Contains(t, out, "2 templates, 0 failed")

	base := filepath.Join(dir, config.DefaultOutputDir, "views")
	prog, err := os.ReadFile(filepath.Join(base, "a.erb"+build.ProgramExt))
	require.NoError(t, err)
	assert.Contains(t, string(prog), `lineno.New("views/a.erb")`)

	testutils.AssertFileContent(t, filepath.Join(base, "a.erb"+build.OutputExt),
		"#line 1 \"views/a.erb\"\nA\n#line 3 \"views/a.erb\"\nB\n")
	testutils.AssertFileContent(t, filepath.Join(base, "b.tmpl"+build.OutputExt),
		"#line 1 \"views/b.tmpl\"\nHi Cy\n")

	assert.NoFileExists(t, filepath.Join(base, "skip.txt"+build.ProgramExt))
}

func TestBuildCommandFailures(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutils.WriteFile(t, filepath.Join(dir, "good.erb"), "fine\n")
	testutils.WriteFile(t, filepath.Join(dir, "bad.erb"), "<% broken\n")

	out, err := executeCommand(t, "", "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 templates failed")
	assert.Contains(t, out, "good.erb")
	assert.NoFileExists(t, filepath.Join(dir, config.DefaultOutputDir, "bad.erb"+build.ProgramExt))
}

func TestBuildCommandStructuredOutput(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutils.WriteFile(t, filepath.Join(dir, "tmpl", "a.erb"), "a\n")

	out, err := executeCommand(t, "", "build", "tmpl", "--format", "json", "--output-dir", "gen")
	require.NoError(t, err)

	var report buildReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Templates)
	assert.Equal(t, int64(1), report.Succeeded)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "tmpl/a.erb", report.Results[0].Template)
	assert.FileExists(t, filepath.Join(dir, "gen", "tmpl", "a.erb"+build.ProgramExt))
}

func TestBuildCommandNoTemplates(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := executeCommand(t, "", "build")
	require.NoError(t, err)
	assert.Contains(t, out, "no templates found")
}

func TestHandleChanges(t *testing.T) {
	projectDir := testutils.CreateTempProject(t)
	path := testutils.CreateTestTemplate(t, projectDir, "page.erb", "A\n<% x -%>\nB\n")

	cfg := testutils.CreateTestConfig(projectDir)
	s, err := scanner.New(cfg.Build, projectDir)
	require.NoError(t, err)
	outDir := filepath.Join(projectDir, cfg.Build.OutputDir)
	pipeline := build.NewPipeline(build.Options{
		Workers:   cfg.Build.Workers,
		OutputDir: outDir,
		Encoding:  cfg.Render.Encoding,
		Render:    true,
	})

	var stdout, stderr bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&stdout)
	c.SetErr(&stderr)

	ctx := context.Background()
	progPath := filepath.Join(outDir, "views", "page.erb"+build.ProgramExt)
	outPath := filepath.Join(outDir, "views", "page.erb"+build.OutputExt)

	events := []watcher.ChangeEvent{{Type: watcher.EventTypeModified, Path: path}}
	require.NoError(t, handleChanges(ctx, c, pipeline, events, s.Rel))
	assert.FileExists(t, progPath)
	testutils.AssertFileContent(t, outPath, "#line 1 \"views/page.erb\"\nA\n#line 3 \"views/page.erb\"\nB\n")
	assert.Contains(t, stdout.String(), "views/page.erb")

	require.NoError(t, os.Remove(path))
	events = []watcher.ChangeEvent{{Type: watcher.EventTypeDeleted, Path: path}}
	require.NoError(t, handleChanges(ctx, c, pipeline, events, s.Rel))
	assert.NoFileExists(t, progPath)
	assert.NoFileExists(t, outPath)
	assert.Contains(t, stdout.String(), "views/page.erb removed")

	testutils.WriteFile(t, path, "<% broken\n")
	events = []watcher.ChangeEvent{{Type: watcher.EventTypeCreated, Path: path}}
	err = handleChanges(ctx, c, pipeline, events, s.Rel)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "unterminated tag")
}

func TestConfigShowCommand(t *testing.T) {
	t.Setenv("TEMPLINE_BUILD_WORKERS", "9")

	out, err := executeCommand(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "workers: 9")
	assert.Contains(t, out, "output_dir: "+config.DefaultOutputDir)

	_, err = executeCommand(t, "", "config", "show", "--format", "toml")
	require.Error(t, err)
}

func TestConfigFileFlag(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yml")
	testutils.WriteFile(t, file, "build:\n  extensions: [\".rhtml\"]\nrender:\n  encoding: latin1\n")

	out, err := executeCommand(t, "", "config", "show", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, ".rhtml")
	assert.Contains(t, out, "encoding: latin1")
}

func TestConfigValidateCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := executeCommand(t, "", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")

	t.Setenv("TEMPLINE_BUILD_SCAN_PATHS", "missing-dir")
	out, err = executeCommand(t, "", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "directory does not exist")

	_, err = executeCommand(t, "", "config", "validate", "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 warnings")
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "", "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = executeCommand(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: ")
	assert.Contains(t, out, "Platform: ")

	out, err = executeCommand(t, "", "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "go_version")

	_, err = executeCommand(t, "", "version", "--format", "xml")
	require.Error(t, err)
}

func TestStandardFlagsParseData(t *testing.T) {
	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "d.json")
	tomlFile := filepath.Join(dir, "d.toml")
	testutils.WriteFile(t, jsonFile, `{"a": 1}`)
	testutils.WriteFile(t, tomlFile, "b = \"two\"\n")

	tests := []struct {
		name     string
		flags    StandardFlags
		fallback string
		key      string
		value    interface{}
	}{
		{name: "inline json", flags: StandardFlags{Data: `{"x": "y"}`}, key: "x", value: "y"},
		{name: "at file", flags: StandardFlags{Data: "@" + tomlFile}, key: "b", value: "two"},
		{name: "data file", flags: StandardFlags{DataFile: jsonFile}, key: "a", value: float64(1)},
		{name: "fallback", fallback: tomlFile, key: "b", value: "two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.flags.ParseData(tt.fallback)
			require.NoError(t, err)
			assert.Equal(t, tt.value, data[tt.key])
		})
	}

	empty := StandardFlags{}
	data, err := empty.ParseData("")
	require.NoError(t, err)
	assert.Empty(t, data)

	missing := StandardFlags{DataFile: filepath.Join(dir, "missing.json")}
	_, err = missing.ParseData("")
	require.Error(t, err)
}

func TestValidateEncoding(t *testing.T) {
	assert.NoError(t, ValidateEncoding(""))
	assert.NoError(t, ValidateEncoding("utf-8"))
	assert.NoError(t, ValidateEncoding("latin1"))
	assert.Error(t, ValidateEncoding("klingon"))
}

func TestStandardFlagsValidateFlags(t *testing.T) {
	assert.NoError(t, (&StandardFlags{OutputFormat: "yaml"}).ValidateFlags())
	assert.Error(t, (&StandardFlags{OutputFormat: "xml"}).ValidateFlags())
	assert.Error(t, (&StandardFlags{Data: "{}", DataFile: "x.json"}).ValidateFlags())
}
