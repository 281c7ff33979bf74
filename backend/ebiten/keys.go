// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ebiten

import (
	"github.com/gogpu/gpucontext"
	eb "github.com/hajimehoshi/ebiten/v2"
)

// keyMap translates Ebitengine keys to gpucontext keys. Keys without a
// gpucontext equivalent are absent.
var keyMap = buildKeyMap()

func buildKeyMap() map[eb.Key]gpucontext.Key {
	m := map[eb.Key]gpucontext.Key{
		eb.KeyEscape:         gpucontext.KeyEscape,
		eb.KeyTab:            gpucontext.KeyTab,
		eb.KeyBackspace:      gpucontext.KeyBackspace,
		eb.KeyEnter:          gpucontext.KeyEnter,
		eb.KeySpace:          gpucontext.KeySpace,
		eb.KeyInsert:         gpucontext.KeyInsert,
		eb.KeyDelete:         gpucontext.KeyDelete,
		eb.KeyHome:           gpucontext.KeyHome,
		eb.KeyEnd:            gpucontext.KeyEnd,
		eb.KeyPageUp:         gpucontext.KeyPageUp,
		eb.KeyPageDown:       gpucontext.KeyPageDown,
		eb.KeyArrowLeft:      gpucontext.KeyLeft,
		eb.KeyArrowRight:     gpucontext.KeyRight,
		eb.KeyArrowUp:        gpucontext.KeyUp,
		eb.KeyArrowDown:      gpucontext.KeyDown,
		eb.KeyShiftLeft:      gpucontext.KeyLeftShift,
		eb.KeyShiftRight:     gpucontext.KeyRightShift,
		eb.KeyControlLeft:    gpucontext.KeyLeftControl,
		eb.KeyControlRight:   gpucontext.KeyRightControl,
		eb.KeyAltLeft:        gpucontext.KeyLeftAlt,
		eb.KeyAltRight:       gpucontext.KeyRightAlt,
		eb.KeyMetaLeft:       gpucontext.KeyLeftSuper,
		eb.KeyMetaRight:      gpucontext.KeyRightSuper,
		eb.KeyMinus:          gpucontext.KeyMinus,
		eb.KeyEqual:          gpucontext.KeyEqual,
		eb.KeyBracketLeft:    gpucontext.KeyLeftBracket,
		eb.KeyBracketRight:   gpucontext.KeyRightBracket,
		eb.KeyBackslash:      gpucontext.KeyBackslash,
		eb.KeySemicolon:      gpucontext.KeySemicolon,
		eb.KeyQuote:          gpucontext.KeyApostrophe,
		eb.KeyBackquote:      gpucontext.KeyGrave,
		eb.KeyComma:          gpucontext.KeyComma,
		eb.KeyPeriod:         gpucontext.KeyPeriod,
		eb.KeySlash:          gpucontext.KeySlash,
		eb.KeyNumpadDecimal:  gpucontext.KeyNumpadDecimal,
		eb.KeyNumpadDivide:   gpucontext.KeyNumpadDivide,
		eb.KeyNumpadMultiply: gpucontext.KeyNumpadMultiply,
		eb.KeyNumpadSubtract: gpucontext.KeyNumpadSubtract,
		eb.KeyNumpadAdd:      gpucontext.KeyNumpadAdd,
		eb.KeyNumpadEnter:    gpucontext.KeyNumpadEnter,
		eb.KeyCapsLock:       gpucontext.KeyCapsLock,
		eb.KeyScrollLock:     gpucontext.KeyScrollLock,
		eb.KeyNumLock:        gpucontext.KeyNumLock,
		eb.KeyPrintScreen:    gpucontext.KeyPrintScreen,
		eb.KeyPause:          gpucontext.KeyPause,
	}
	for i := range 26 {
		m[eb.KeyA+eb.Key(i)] = gpucontext.KeyA + gpucontext.Key(i)
	}
	for i := range 10 {
		m[eb.KeyDigit0+eb.Key(i)] = gpucontext.Key0 + gpucontext.Key(i)
		m[eb.KeyNumpad0+eb.Key(i)] = gpucontext.KeyNumpad0 + gpucontext.Key(i)
	}
	for i := range 12 {
		m[eb.KeyF1+eb.Key(i)] = gpucontext.KeyF1 + gpucontext.Key(i)
	}
	return m
}
