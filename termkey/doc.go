// Package termkey decodes the byte stream a terminal sends into keys.
//
// A Decoder accepts bytes through PushBytes (or Write) and yields keys from
// NextEvent: Unicode characters, function keys, named keysyms such as Enter
// or PageUp, mouse reports, cursor position reports, mode reports and
// control sequences it does not recognise. It performs no I/O and keeps no
// timers. When the buffer holds an ambiguous prefix, most often a lone
// Escape, NextEvent returns ResultAgain with the configured wait time; the
// caller waits that long for more input and otherwise calls NextEvent(true)
// to force a decision:
//
//	d, _ := termkey.New(termkey.Config{})
//	d.PushBytes(input)
//	for {
//		ev := d.NextEvent(false)
//		switch ev.Result {
//		case termkey.ResultKey:
//			fmt.Println(d.Format(ev.Key, termkey.FormatVim))
//			continue
//		case termkey.ResultAgain:
//			// wait up to ev.Wait for input, then NextEvent(true)
//		}
//		break
//	}
//
// Keys render to and parse from text notations such as "C-a", "<M-Up>" or
// "shift page up" with FormatKey and ParseKey.
package termkey
