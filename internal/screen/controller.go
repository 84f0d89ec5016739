// Package screen abstracts the remote screen-control channel used to drive
// the clinic desktop. Two implementations exist: a deterministic synthetic
// controller for development and tests, and a live controller that proxies
// each call to an external remote-desktop tool.
package screen

import (
	"errors"
	"fmt"
)

// Scroll directions accepted by Controller.Scroll.
const (
	ScrollUp    = "up"
	ScrollDown  = "down"
	ScrollLeft  = "left"
	ScrollRight = "right"
)

// ErrNotConnected is returned by every operation invoked before Connect or
// after Disconnect.
var ErrNotConnected = errors.New("screen: not connected")

// Controller is the capability surface for driving a remote screen.
// CaptureFrame returns an opaque PNG buffer.
type Controller interface {
	Connect() error
	Disconnect() error
	CaptureFrame() ([]byte, error)
	Click(x, y int) error
	DoubleClick(x, y int) error
	RightClick(x, y int) error
	MouseMove(x, y int) error
	TypeText(text string) error
	Key(combo string) error
	Scroll(x, y int, direction string, amount int) error
}

// Options configures controller construction.
type Options struct {
	Width  int
	Height int

	// Live controller only.
	Host        string
	Port        int
	Tool        string
	CallTimeout int // seconds per external call
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1024
	}
	if o.Height <= 0 {
		o.Height = 768
	}
	if o.Port <= 0 {
		o.Port = 5900
	}
	if o.Tool == "" {
		o.Tool = "vncdo"
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 15
	}
	return o
}

// New selects a controller implementation by configuration.
func New(mock bool, opts Options) (Controller, error) {
	opts = opts.withDefaults()
	if mock {
		return NewSynthetic(opts.Width, opts.Height), nil
	}
	if opts.Host == "" {
		return nil, fmt.Errorf("screen: live controller requires a host")
	}
	return NewLive(opts), nil
}
