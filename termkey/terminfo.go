package termkey

import (
	"fmt"

	"github.com/gdamore/tcell/v2/terminfo"
	_ "github.com/gdamore/tcell/v2/terminfo/base"
	"go.uber.org/zap"
)

// LoadTerminfo registers the key sequences a terminal type advertises in
// its terminfo entry. Only multi-byte sequences starting with ESC are
// taken; single bytes keep their C0 meaning.
func (d *Decoder) LoadTerminfo(name string) error {
	ti, err := terminfo.LookupTerminfo(name)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrUnknownTerminal, name, err)
	}

	n := 0
	for _, b := range terminfoBindings(ti) {
		if len(b.seq) < 2 || b.seq[0] != 0x1b {
			continue
		}
		if err := d.RegisterSequence(b.seq, b.key); err != nil {
			return err
		}
		n++
	}
	d.log.Debug("loaded terminfo keys", zap.String("term", name), zap.Int("sequences", n))
	return nil
}

type seqBinding struct {
	seq string
	key Key
}

func terminfoBindings(ti *terminfo.Terminfo) []seqBinding {
	bindings := []seqBinding{
		{ti.KeyBackspace, SymKey(SymBackspace, 0)},
		{ti.KeyInsert, SymKey(SymInsert, 0)},
		{ti.KeyDelete, SymKey(SymDelete, 0)},
		{ti.KeyHome, SymKey(SymHome, 0)},
		{ti.KeyEnd, SymKey(SymEnd, 0)},
		{ti.KeyUp, SymKey(SymUp, 0)},
		{ti.KeyDown, SymKey(SymDown, 0)},
		{ti.KeyLeft, SymKey(SymLeft, 0)},
		{ti.KeyRight, SymKey(SymRight, 0)},
		{ti.KeyPgUp, SymKey(SymPageUp, 0)},
		{ti.KeyPgDn, SymKey(SymPageDown, 0)},
		{ti.KeyHelp, SymKey(SymHelp, 0)},
		{ti.KeyPrint, SymKey(SymPrint, 0)},
		{ti.KeyCancel, SymKey(SymCancel, 0)},
		{ti.KeyExit, SymKey(SymExit, 0)},
		{ti.KeyBacktab, SymKey(SymTab, ModShift)},
	}

	fkeys := []string{
		ti.KeyF1, ti.KeyF2, ti.KeyF3, ti.KeyF4, ti.KeyF5, ti.KeyF6, ti.KeyF7, ti.KeyF8,
		ti.KeyF9, ti.KeyF10, ti.KeyF11, ti.KeyF12, ti.KeyF13, ti.KeyF14, ti.KeyF15, ti.KeyF16,
		ti.KeyF17, ti.KeyF18, ti.KeyF19, ti.KeyF20, ti.KeyF21, ti.KeyF22, ti.KeyF23, ti.KeyF24,
		ti.KeyF25, ti.KeyF26, ti.KeyF27, ti.KeyF28, ti.KeyF29, ti.KeyF30, ti.KeyF31, ti.KeyF32,
		ti.KeyF33, ti.KeyF34, ti.KeyF35, ti.KeyF36, ti.KeyF37, ti.KeyF38, ti.KeyF39, ti.KeyF40,
		ti.KeyF41, ti.KeyF42, ti.KeyF43, ti.KeyF44, ti.KeyF45, ti.KeyF46, ti.KeyF47, ti.KeyF48,
		ti.KeyF49, ti.KeyF50, ti.KeyF51, ti.KeyF52, ti.KeyF53, ti.KeyF54, ti.KeyF55, ti.KeyF56,
		ti.KeyF57, ti.KeyF58, ti.KeyF59, ti.KeyF60, ti.KeyF61, ti.KeyF62, ti.KeyF63, ti.KeyF64,
	}
	for i, seq := range fkeys {
		bindings = append(bindings, seqBinding{seq, FunctionKey(i+1, 0)})
	}
	return bindings
}
