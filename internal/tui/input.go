package tui

import (
	"bufio"
	"io"
	"sync"

	"github.com/thruflo/tracksync/internal/host"
)

// Key represents a keyboard input.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyEnter
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyCtrlC
	KeyCtrlD
	KeyRune // Regular character
)

// KeyEvent represents a key press event.
type KeyEvent struct {
	Key  Key
	Rune rune // Only valid when Key == KeyRune
}

// Closes reports whether the key asks the player to quit.
func (ev KeyEvent) Closes() bool {
	switch ev.Key {
	case KeyEscape, KeyCtrlC, KeyCtrlD:
		return true
	case KeyRune:
		return ev.Rune == 'q' || ev.Rune == 'Q'
	}
	return false
}

// KeyReader reads keyboard input from a raw terminal.
type KeyReader struct {
	reader *bufio.Reader
}

// NewKeyReader creates a KeyReader from the given io.Reader.
func NewKeyReader(r io.Reader) *KeyReader {
	return &KeyReader{
		reader: bufio.NewReaderSize(r, 64),
	}
}

// ReadKey reads a single key event. It blocks until a key is pressed.
func (k *KeyReader) ReadKey() (KeyEvent, error) {
	b, err := k.reader.ReadByte()
	if err != nil {
		return KeyEvent{}, err
	}

	switch b {
	case 0x03:
		return KeyEvent{Key: KeyCtrlC}, nil
	case 0x04:
		return KeyEvent{Key: KeyCtrlD}, nil
	case 0x0D, 0x0A:
		return KeyEvent{Key: KeyEnter}, nil
	case 0x1B:
		return k.readEscapeSequence(), nil
	default:
		if b >= 0x20 && b < 0x7F {
			return KeyEvent{Key: KeyRune, Rune: rune(b)}, nil
		}
		return KeyEvent{Key: KeyUnknown}, nil
	}
}

// readEscapeSequence tells a bare Escape from an arrow-key sequence. Only
// bytes already buffered are inspected, so a lone Escape never blocks.
func (k *KeyReader) readEscapeSequence() KeyEvent {
	if k.reader.Buffered() == 0 {
		return KeyEvent{Key: KeyEscape}
	}

	b, _ := k.reader.ReadByte()
	if b != '[' && b != 'O' {
		k.reader.UnreadByte()
		return KeyEvent{Key: KeyEscape}
	}
	if k.reader.Buffered() == 0 {
		return KeyEvent{Key: KeyUnknown}
	}

	b, _ = k.reader.ReadByte()
	switch b {
	case 'A':
		return KeyEvent{Key: KeyUp}
	case 'B':
		return KeyEvent{Key: KeyDown}
	case 'C':
		return KeyEvent{Key: KeyRight}
	case 'D':
		return KeyEvent{Key: KeyLeft}
	}
	// Skip the rest of an unknown sequence.
	for (b < 'A' || b > 'Z') && b != '~' && k.reader.Buffered() > 0 {
		b, _ = k.reader.ReadByte()
	}
	return KeyEvent{Key: KeyUnknown}
}

// SizeFunc reports the output size.
type SizeFunc func() (width, height int, err error)

// Input turns key presses and terminal size changes into host events. Keys
// are read on a background goroutine; Poll never blocks.
type Input struct {
	keys *KeyReader
	size SizeFunc

	mu      sync.Mutex
	pending []KeyEvent
	done    bool

	width, height int
}

// NewInput creates an Input. size may be nil when the output has no size.
func NewInput(r io.Reader, size SizeFunc) *Input {
	in := &Input{keys: NewKeyReader(r), size: size}
	if size != nil {
		in.width, in.height, _ = size()
	}
	return in
}

// Start begins reading keys. Reading stops at the first read error; the
// goroutine cannot be interrupted while blocked on a read.
func (in *Input) Start() {
	go func() {
		for {
			ev, err := in.keys.ReadKey()
			in.mu.Lock()
			if err != nil {
				in.done = true
				in.mu.Unlock()
				return
			}
			in.pending = append(in.pending, ev)
			in.mu.Unlock()
		}
	}()
}

// Done reports whether key reading has stopped.
func (in *Input) Done() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.done
}

// Poll returns the events seen since the last call.
func (in *Input) Poll() []host.Event {
	in.mu.Lock()
	keys := in.pending
	in.pending = nil
	in.mu.Unlock()

	var events []host.Event
	for _, k := range keys {
		if k.Closes() {
			events = append(events, host.Event{Kind: host.EventClose})
			break
		}
	}

	if in.size != nil {
		if w, h, err := in.size(); err == nil && (w != in.width || h != in.height) {
			in.width, in.height = w, h
			events = append(events, host.Event{Kind: host.EventResize, Width: w, Height: h})
		}
	}
	return events
}
