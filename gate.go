package main

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

// manualGate is the point where automation hands control to a human:
// CAPTCHAs, 2FA prompts, login forms that moved again. Interactive runs use
// the stdin gate; unattended runs substitute the timeout gate so the same
// call sites need no branching.
type manualGate interface {
	// Await blocks until the operator (or policy) decides. It returns true
	// to continue the run and false to skip the current step.
	Await(prompt string) bool
}

// stdinGate waits for an explicit keypress: ENTER continues, ESC or 's'
// skips. The wait is unbounded on purpose; a human solving a challenge
// cannot be put on a timer.
type stdinGate struct {
	in *bufio.Reader
}

func newStdinGate(r io.Reader) *stdinGate {
	return &stdinGate{in: bufio.NewReader(r)}
}

func (g *stdinGate) Await(prompt string) bool {
	fmt.Println()
	fmt.Println(prompt)
	fmt.Print("   Press ENTER to continue, ESC or 's' to skip: ")
	for {
		b, err := g.in.ReadByte()
		if err != nil {
			fmt.Println()
			return false
		}
		switch b {
		case '\n', '\r':
			fmt.Println()
			fmt.Println("✓ Continuing...")
			return true
		case 27, 's', 'S':
			fmt.Println()
			fmt.Println("⏭️  Skipping this step")
			return false
		}
	}
}

// timeoutGate sleeps a fixed manual-intervention window and then continues
// regardless. This is the best-effort policy for unattended deployments.
type timeoutGate struct {
	wait time.Duration
}

func (g *timeoutGate) Await(prompt string) bool {
	fmt.Println()
	fmt.Println(prompt)
	fmt.Printf("   Waiting %s before continuing automatically...\n", g.wait)
	time.Sleep(g.wait)
	return true
}
