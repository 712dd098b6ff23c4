package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/phroun/termkey/internal/config"
	"github.com/phroun/termkey/internal/logging"
	"github.com/phroun/termkey/keyboard"
	"github.com/phroun/termkey/termkey"
)

// Kitty keyboard protocol escape sequences
const (
	// Flags: 1=disambiguate escape codes, 2=report event types, 4=report alternate keys, 8=report all keys as escape codes, 16=report associated text
	kittyEnable  = "\x1b[>1u"  // Basic mode (disambiguate escape codes)
	kittyEnhance = "\x1b[>31u" // Full mode (all flags)
	kittyDisable = "\x1b[<u"   // Pop/disable

	// Mouse reporting
	mouseEnableSGR    = "\x1b[?1006h" // SGR mouse mode
	mouseEnableBasic  = "\x1b[?1000h" // Basic mouse tracking
	mouseEnableMotion = "\x1b[?1002h" // Button event + motion tracking
	mouseDisable      = "\x1b[?1000l\x1b[?1002l\x1b[?1006l"
)

func main() {
	configPath := flag.String("config", "termkey.toml", "Path to a TOML config file")
	format := flag.String("format", "", "Key notation (vim, urwid, default or a flag list); overrides the config")
	terminfo := flag.String("terminfo", "", "Load key sequences for this terminal type (e.g. $TERM)")
	mousePos := flag.Bool("mousepos", false, "Include mouse coordinates in key names")
	debug := flag.Bool("debug", false, "Log decoder diagnostics to stderr")
	kittyMode := flag.Bool("kitty", false, "Enable Kitty keyboard protocol")
	kittyFull := flag.Bool("kitty-full", false, "Enable Kitty keyboard protocol with all flags")
	mouseMode := flag.Bool("mouse", false, "Enable mouse reporting (SGR mode)")
	flag.Parse()

	if err := run(*configPath, *format, *terminfo, *mousePos, *debug, *kittyMode || *kittyFull, *kittyFull, *mouseMode); err != nil {
		fmt.Fprintf(os.Stderr, "testkey: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, format, terminfo string, mousePos, debug, kitty, kittyFull, mouse bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if format != "" {
		cfg.Format = format
	}
	if terminfo != "" {
		cfg.Terminfo = terminfo
	}
	if debug {
		cfg.SetLogging(logging.DevelopmentConfig())
	}
	// Ctrl-C must arrive as a key so the loop below can exit cleanly.
	cfg.Decoder.CtrlC = true

	style, err := cfg.Style()
	if err != nil {
		return err
	}
	if mousePos {
		style |= termkey.FormatMousePos
	}

	logger, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	decoderCfg, err := cfg.DecoderConfig()
	if err != nil {
		return err
	}
	seqs, err := cfg.Sequences(decoderCfg.Symbols)
	if err != nil {
		return err
	}

	handler, err := keyboard.New(keyboard.Options{
		InputReader: os.Stdin,
		Decoder:     decoderCfg,
		Terminfo:    cfg.Terminfo,
		Sequences:   seqs,
		Logger:      logger.Logger,
	})
	if err != nil {
		return err
	}

	// Enable terminal modes before starting
	if kitty {
		if kittyFull {
			fmt.Print(kittyEnhance)
			fmt.Println("Kitty keyboard protocol enabled (full mode - all flags)")
		} else {
			fmt.Print(kittyEnable)
			fmt.Println("Kitty keyboard protocol enabled (basic mode)")
		}
	}
	if mouse {
		fmt.Print(mouseEnableBasic + mouseEnableMotion + mouseEnableSGR)
		fmt.Println("Mouse reporting enabled (SGR mode)")
	}

	restore := func() {
		if kitty {
			fmt.Print(kittyDisable)
		}
		if mouse {
			fmt.Print(mouseDisable)
		}
	}

	if err := handler.Start(); err != nil {
		restore()
		return fmt.Errorf("starting handler: %w", err)
	}
	defer func() {
		handler.Stop()
		restore()
	}()

	fmt.Print("Press keys (Ctrl+C to exit):\r\n")

	quit := termkey.UnicodeKey('c', termkey.ModCtrl)
	for {
		select {
		case key := <-handler.Keys:
			fmt.Printf("Key: %s\r\n", handler.FormatKey(key, style))
			if termkey.Compare(key, quit) == 0 {
				return nil
			}
		case <-handler.Done():
			return nil
		}
	}
}
