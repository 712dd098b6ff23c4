// Package config loads settings for the termkey tools from a TOML file and
// TERMKEY_* environment variables, in that order of precedence (environment
// wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/phroun/termkey/internal/logging"
	"github.com/phroun/termkey/termkey"
)

// EnvPrefix prefixes every environment override, e.g. TERMKEY_FORMAT or
// TERMKEY_DECODER_WAIT_TIME.
const EnvPrefix = "TERMKEY"

// Config holds all tool configuration.
type Config struct {
	// Format is a preset ("vim", "urwid", "default") or a comma-separated
	// list of flags such as "long_mod,space_mod".
	Format string `toml:"format"`

	// Terminfo names a terminal type whose key sequences are loaded.
	Terminfo string `toml:"terminfo"`

	Decoder DecoderConfig `toml:"decoder"`
	Logging LogConfig     `toml:"logging"`

	// Names are extra keysym names to register.
	Names []string `toml:"names"`

	// Bindings map escape sequences to keys.
	Bindings []Binding `toml:"bindings" ignored:"true"`
}

// DecoderConfig mirrors termkey.Config in file-friendly types.
type DecoderConfig struct {
	Raw         bool   `toml:"raw"`
	Charmap     string `toml:"charmap"`
	SpaceSymbol bool   `toml:"space_symbol" split_words:"true"`
	DelBS       bool   `toml:"del_bs" split_words:"true"`
	NoInterpret bool   `toml:"no_interpret" split_words:"true"`
	ConvertKP   bool   `toml:"convert_kp" split_words:"true"`
	CtrlC       bool   `toml:"ctrl_c" split_words:"true"`
	WaitTime    string `toml:"wait_time" split_words:"true"`
	BufferSize  int    `toml:"buffer_size" split_words:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string   `toml:"level"`
	Development bool     `toml:"development"`
	Output      []string `toml:"output"`
}

// Binding makes Sequence decode as Key, written in Vim notation
// (e.g. "<S-F5>" or "<Media>").
type Binding struct {
	Sequence string `toml:"sequence"`
	Key      string `toml:"key"`
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Format: "vim",
		Decoder: DecoderConfig{
			Charmap:    charmap.ISO8859_1.String(),
			WaitTime:   termkey.DefaultWaitTime.String(),
			BufferSize: termkey.DefaultBufferSize,
		},
	}
	cfg.SetLogging(logging.DefaultConfig())
	return cfg
}

// SetLogging replaces the logging section.
func (c *Config) SetLogging(lc logging.Config) {
	c.Logging = LogConfig{
		Level:       lc.Level,
		Development: lc.Development,
		Output:      append([]string(nil), lc.OutputPaths...),
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. A missing file is not an error; an empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

var styleFlags = map[string]termkey.Format{
	"default":      0,
	"vim":          termkey.FormatVim,
	"urwid":        termkey.FormatURWID,
	"long_mod":     termkey.FormatLongMod,
	"caret_ctrl":   termkey.FormatCaretCtrl,
	"alt_is_meta":  termkey.FormatAltIsMeta,
	"wrap_bracket": termkey.FormatWrapBracket,
	"space_mod":    termkey.FormatSpaceMod,
	"lower_mod":    termkey.FormatLowerMod,
	"lower_space":  termkey.FormatLowerSpace,
	"mouse_pos":    termkey.FormatMousePos,
}

// Style resolves Format into notation flags.
func (c *Config) Style() (termkey.Format, error) {
	var style termkey.Format
	fields := strings.FieldsFunc(c.Format, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	for _, name := range fields {
		f, ok := styleFlags[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("unknown format flag %q", name)
		}
		style |= f
	}
	return style, nil
}

// DecoderConfig builds the decoder configuration, with a fresh keysym
// table holding the builtin names plus Names.
func (c *Config) DecoderConfig() (termkey.Config, error) {
	cfg := termkey.Config{
		Raw:         c.Decoder.Raw,
		SpaceSymbol: c.Decoder.SpaceSymbol,
		DelBS:       c.Decoder.DelBS,
		NoInterpret: c.Decoder.NoInterpret,
		ConvertKP:   c.Decoder.ConvertKP,
		CtrlC:       c.Decoder.CtrlC,
		BufferSize:  c.Decoder.BufferSize,
		Symbols:     termkey.NewSymbolTable(),
	}

	if c.Decoder.WaitTime != "" {
		wait, err := time.ParseDuration(c.Decoder.WaitTime)
		if err != nil {
			return termkey.Config{}, fmt.Errorf("decoder wait_time: %w", err)
		}
		cfg.WaitTime = wait
	}

	if c.Decoder.Charmap != "" {
		cm, err := lookupCharmap(c.Decoder.Charmap)
		if err != nil {
			return termkey.Config{}, err
		}
		cfg.RawCharmap = cm
	}

	for _, name := range c.Names {
		if _, ok := cfg.Symbols.Lookup(name); !ok {
			cfg.Symbols.Register(name, termkey.SymUnknown)
		}
	}

	if err := cfg.Validate(); err != nil {
		return termkey.Config{}, err
	}
	return cfg, nil
}

// Sequences parses Bindings against syms, which must already hold any
// custom names the bindings use.
func (c *Config) Sequences(syms *termkey.SymbolTable) (map[string]termkey.Key, error) {
	seqs := make(map[string]termkey.Key, len(c.Bindings))
	for _, b := range c.Bindings {
		if b.Sequence == "" {
			return nil, fmt.Errorf("binding %q: empty sequence", b.Key)
		}
		k, rest, err := syms.ParseKey(b.Key, termkey.FormatVim)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", b.Key, err)
		}
		if rest != "" {
			return nil, fmt.Errorf("binding %q: trailing %q: %w", b.Key, rest, termkey.ErrUnsupportedNotation)
		}
		seqs[b.Sequence] = k
	}
	return seqs, nil
}

// LoggerConfig converts the logging section for the logging package.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		OutputPaths: c.Logging.Output,
	}
}

func lookupCharmap(name string) (*charmap.Charmap, error) {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok && strings.EqualFold(cm.String(), name) {
			return cm, nil
		}
	}
	return nil, fmt.Errorf("unknown charmap %q", name)
}
