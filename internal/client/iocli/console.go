package iocli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Console IO поверх произвольных потоков. Пароль читается без эха,
// только если ввод является терминалом; иначе читается строка целиком.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	termFd int
	isTerm bool
}

var _ IO = (*Console)(nil)

// NewStdio консоль процесса
func NewStdio() *Console {
	return NewConsole(os.Stdin, os.Stdout)
}

// NewConsole создает консоль над in и out
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		in:  bufio.NewReader(in),
		out: out,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.termFd = int(f.Fd())
		c.isTerm = true
	}
	return c
}

func (c *Console) Println(a ...any) {
	_, _ = fmt.Fprintln(c.out, a...)
}

func (c *Console) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(c.out, format, a...)
}

func (c *Console) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

func (c *Console) ReadInput(prompt string) (string, error) {
	c.Printf("%s", prompt)
	return c.readLine()
}

func (c *Console) ReadPassword(prompt string) (string, error) {
	c.Printf("%s", prompt)
	if !c.isTerm {
		return c.readLine()
	}

	pw, err := term.ReadPassword(c.termFd)
	c.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	// Последняя строка без перевода строки тоже ввод
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
