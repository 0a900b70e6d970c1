package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/cli/config"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string) // setup before running
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name:    "init empty directory",
			args:    []string{},
			wantErr: false,
			wantFiles: []string{
				"leaplineage.yaml",
				".gitignore",
				"repos",
				"repos/example/project.yaml",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leaplineage.yaml"), []byte("existing"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leaplineage.yaml"), []byte("existing"), 0600)
			},
			args:    []string{"--force"},
			wantErr: false,
			wantFiles: []string{
				"leaplineage.yaml",
				"repos/example/project.yaml",
			},
		},
		{
			name:    "init named directory",
			args:    []string{"catalog"},
			wantErr: false,
			wantFiles: []string{
				"catalog/leaplineage.yaml",
				"catalog/repos/example/project.yaml",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)

			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "Use --force to overwrite")
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				_, err := os.Stat(filepath.Join(tmpDir, f))
				assert.False(t, os.IsNotExist(err), "expected file/dir %q to exist", f)
			}
		})
	}
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
}

func TestInitReportsCreatedFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := NewInitCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "- **leaplineage.yaml:** Created")
	assert.Contains(t, out, "- **repos/example/project.yaml:** Created")
	assert.Contains(t, out, "leaplineage project initialized!")
	assert.Contains(t, out, "leaplineage harvest")
}

func TestInitCreatesLoadableConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("NEO4J_PASS", "secret")

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile("leaplineage.yaml")
	require.NoError(t, err, "failed to read leaplineage.yaml")
	for _, expected := range []string{"repos_dir: repos", "type: duckdb", "port: 8765"} {
		assert.Contains(t, string(content), expected, "config should contain %q", expected)
	}

	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.Warehouse.Type)
	assert.Equal(t, "secret", cfg.Neo4j.Password)
	assert.Equal(t, "main", cfg.Warehouse.Schema)
	require.NoError(t, cfg.ValidateDirectories())
}
