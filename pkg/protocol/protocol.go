// Package protocol implements the line protocol of the recognition daemon.
//
// Clients write document text line by line, then a sentinel token on its own
// line. The daemon answers with the annotation lines of the accumulated text
// followed by the token itself, and flushes. NER_NEW_FILE* tokens keep the
// session open; NER_END* tokens process the pending text and close it. The
// _ALL, _SCORE and _NAMES suffixes select the output mode.
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/google/uuid"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions/resolver"
)

// Token is a parsed sentinel line.
type Token struct {
	Name string
	Opts resolver.Options
	End  bool
}

var tokens = map[string]Token{
	"NER_NEW_FILE":       {Opts: resolver.Options{Mode: resolver.ModeDefault}},
	"NER_END":            {Opts: resolver.Options{Mode: resolver.ModeDefault}, End: true},
	"NER_NEW_FILE_ALL":   {Opts: resolver.Options{Mode: resolver.ModeAll}},
	"NER_END_ALL":        {Opts: resolver.Options{Mode: resolver.ModeAll}, End: true},
	"NER_NEW_FILE_SCORE": {Opts: resolver.Options{Mode: resolver.ModeScore}},
	"NER_END_SCORE":      {Opts: resolver.Options{Mode: resolver.ModeScore}, End: true},
	"NER_NEW_FILE_NAMES": {Opts: resolver.Options{Mode: resolver.ModeDefault, FindNames: true}},
	"NER_END_NAMES":      {Opts: resolver.Options{Mode: resolver.ModeDefault, FindNames: true}, End: true},
}

// ParseToken reports whether line is a sentinel token.
func ParseToken(line string) (Token, bool) {
	t, ok := tokens[line]
	if !ok {
		return Token{}, false
	}
	t.Name = line
	return t, true
}

// Recognizer annotates one document.
type Recognizer interface {
	Recognize(ctx context.Context, text string, opts resolver.Options) (*resolver.Result, error)
}

// Session serves the protocol over one input and output stream.
type Session struct {
	recognizer Recognizer
	logger     logging.Logger
}

// NewSession creates a session. A nil logger discards output.
func NewSession(r Recognizer, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Session{recognizer: r, logger: logger}
}

// Serve reads documents from in until an end token, end of input or ctx is
// done. Non-fatal recognition errors are logged and the document answers with
// the token alone; fatal ones stop the session.
func (s *Session) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)
	var text strings.Builder
	documents := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read input: %w", readErr)
		}
		if readErr != nil && line == "" {
			if text.Len() > 0 {
				s.logger.Warn("Input ended without a token, pending text dropped", logging.F("bytes", text.Len()))
			}
			return nil
		}
		// Text keeps everything but the terminator so offsets follow the input.
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		tok, ok := ParseToken(strings.TrimRightFunc(line, unicode.IsSpace))
		if !ok {
			text.WriteString(line)
			text.WriteByte('\n')
			continue
		}

		documents++
		if err := s.answer(ctx, w, text.String(), tok); err != nil {
			return err
		}
		text.Reset()
		if tok.End {
			s.logger.Info("Session closed", logging.F("documents", documents))
			return nil
		}
	}
}

// answer processes one document and writes its lines and the token.
func (s *Session) answer(ctx context.Context, w *bufio.Writer, text string, tok Token) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, logging.RequestIDKey, requestID)
	logger := s.logger.WithContext(ctx)

	opts := tok.Opts
	opts.DocumentID = requestID
	res, err := s.recognizer.Recognize(ctx, text, opts)
	switch {
	case err != nil && pferrors.IsFatal(err):
		return err
	case err != nil:
		fields := []logging.Field{logging.Err(err), logging.F("token", tok.Name)}
		var pe *pferrors.PassError
		if errors.As(err, &pe) {
			fields = append(fields, logging.F("error_code", string(pe.Code)),
				logging.F("error_description", pferrors.GetDescription(pe.Code)),
				logging.F("suggested_action", pferrors.GetSuggestedAction(pe.Code)))
		}
		logger.Warn("Document skipped", fields...)
	case len(res.Lines) > 0:
		if _, err := fmt.Fprintln(w, res.String()); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	if _, err := fmt.Fprintln(w, tok.Name); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	logger.Debug("Document answered", logging.F("token", tok.Name))
	return nil
}
