package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig describes one batch tiling run.
type RunConfig struct {
	Input      string `yaml:"input"`
	LayoutsDir string `yaml:"layouts_dir"`
	Strategy   string `yaml:"strategy"`
	OutputName string `yaml:"output_name"`
	WorkDir    string `yaml:"work_dir"`
	CTBSize    int    `yaml:"ctb_size"`
	Codec      string `yaml:"codec"`

	// Uniform tiling, used when LayoutsDir is empty.
	UniformRows int `yaml:"uniform_rows"`
	UniformCols int `yaml:"uniform_cols"`

	Encode      bool `yaml:"encode"`
	Stitch      bool `yaml:"stitch"`
	KeepTiles   bool `yaml:"keep_tiles"`
	Parallelism int  `yaml:"parallelism"`

	Tools ToolPaths `yaml:"tools"`
}

// ToolPaths locates the external programs.
type ToolPaths struct {
	FFmpeg   string `yaml:"ffmpeg"`
	FFprobe  string `yaml:"ffprobe"`
	Stitcher string `yaml:"stitcher"`
}

// DefaultRunConfig returns a config with both phases enabled.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Strategy:    "cbr",
		CTBSize:     32,
		Encode:      true,
		Stitch:      true,
		Parallelism: 4,
	}
}

// LoadRunFile reads a YAML run description on top of DefaultRunConfig.
func LoadRunFile(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read run file: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse run file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TILE_* and tool path variables.
func (c *RunConfig) ApplyEnv() {
	c.Input = GetEnv("TILE_INPUT", c.Input)
	c.LayoutsDir = GetEnv("TILE_LAYOUTS_DIR", c.LayoutsDir)
	c.Strategy = GetEnv("TILE_STRATEGY", c.Strategy)
	c.OutputName = GetEnv("TILE_OUTPUT_NAME", c.OutputName)
	c.WorkDir = GetEnv("TILE_WORK_DIR", c.WorkDir)
	c.CTBSize = GetEnvInt("TILE_CTB_SIZE", c.CTBSize)
	c.Codec = GetEnv("TILE_CODEC", c.Codec)
	c.UniformRows = GetEnvInt("TILE_UNIFORM_ROWS", c.UniformRows)
	c.UniformCols = GetEnvInt("TILE_UNIFORM_COLS", c.UniformCols)
	c.Encode = GetEnvBool("TILE_ENCODE", c.Encode)
	c.Stitch = GetEnvBool("TILE_STITCH", c.Stitch)
	c.KeepTiles = GetEnvBool("TILE_KEEP_TILES", c.KeepTiles)
	c.Parallelism = GetEnvInt("TILE_PARALLELISM", c.Parallelism)
	c.Tools.FFmpeg = GetEnv("FFMPEG_PATH", c.Tools.FFmpeg)
	c.Tools.FFprobe = GetEnv("FFPROBE_PATH", c.Tools.FFprobe)
	c.Tools.Stitcher = GetEnv("STITCHER_PATH", c.Tools.Stitcher)
}

// Validate reports the first missing or contradictory setting.
func (c RunConfig) Validate() error {
	if c.Input == "" {
		return errors.New("run config: input is required")
	}
	if c.LayoutsDir == "" && (c.UniformRows <= 0 || c.UniformCols <= 0) {
		return errors.New("run config: layouts_dir or uniform_rows/uniform_cols is required")
	}
	if c.CTBSize <= 0 {
		return fmt.Errorf("run config: ctb_size %d", c.CTBSize)
	}
	return nil
}
