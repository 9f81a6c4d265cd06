package emit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Program identity recorded in the pseudo-tag header.
const (
	ProgramName    = "tagsmith"
	ProgramVersion = "0.4.0"
	ProgramAuthor  = "tagsmith authors"
	ProgramURL     = "https://github.com/tagsmith/tagsmith"
)

// PseudoTagPrefix starts every metadata line. Pseudo-tag lines sort
// before real tags under byte order.
const (
	PseudoTagPrefix    = "!_"
	PseudoTagSeparator = "!"
)

// tagFileState is the open tag file and its running bookkeeping.
type tagFileState struct {
	name      string
	directory string
	fp        *os.File
	toStdout  bool

	numTags struct {
		added int
		prev  int
	}
	max struct {
		tag  int
		line int
	}

	etags struct {
		fp        *os.File
		name      string
		byteCount int
	}
}

// write appends s to the tag file. Callers treat a write error as
// fatal.
func (f *tagFileState) write(s string) (int, error) {
	if f.fp == nil {
		return 0, errors.New("tag file not open")
	}
	return f.fp.WriteString(s)
}

// TagFileName returns the path of the open tag file. For a stdout
// destination this is the backing temp file.
func (en *Engine) TagFileName() string { return en.file.name }

// OpenTagFile opens the destination per the engine options: a
// read-write temp file for stdout, an in-place pseudo-tag rewrite plus
// reopen for append mode, or a validated truncate for overwrite. Every
// open must be paired with CloseTagFile.
func (en *Engine) OpenTagFile() error {
	en.file.toStdout = en.opts.ToStdout()

	if en.file.toStdout {
		fp, err := os.CreateTemp("", "tagsmith-*")
		if err != nil {
			return fmt.Errorf("cannot open tag file: %w", err)
		}
		en.file.fp = fp
		en.file.name = fp.Name()
		if wd, err := os.Getwd(); err == nil {
			en.file.directory = wd
		}
		if en.opts.PseudoTags {
			if err := en.addPseudoTags(); err != nil {
				return err
			}
		}
		return nil
	}

	en.file.name = en.opts.TagFileName
	_, statErr := os.Stat(en.file.name)
	fileExists := statErr == nil

	if fileExists && !isTagFile(en.file.name) {
		return fmt.Errorf("%q doesn't look like a tag file; refusing to overwrite it",
			en.file.name)
	}

	var err error
	switch {
	case en.opts.Etags:
		flags := os.O_RDWR | os.O_CREATE
		if en.opts.Append && fileExists {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		en.file.fp, err = os.OpenFile(en.file.name, flags, 0o644)

	case en.opts.Append && fileExists:
		var fp *os.File
		fp, err = os.OpenFile(en.file.name, os.O_RDWR, 0o644)
		if err == nil {
			en.file.numTags.prev = en.updatePseudoTags(fp)
			fp.Close()
			en.file.fp, err = os.OpenFile(en.file.name,
				os.O_RDWR|os.O_APPEND, 0o644)
		}

	default:
		en.file.fp, err = os.Create(en.file.name)
		if err == nil && en.opts.PseudoTags {
			if perr := en.addPseudoTags(); perr != nil {
				return perr
			}
		}
	}
	if err != nil {
		return fmt.Errorf("cannot open tag file: %w", err)
	}

	if abs, aerr := filepath.Abs(filepath.Dir(en.file.name)); aerr == nil {
		en.file.directory = abs
	}
	return nil
}

// WritePseudoTag writes one !_ metadata line. With a language, the
// name gains a !language suffix and the comment column is written
// bare; otherwise the comment is wrapped in slashes.
func (en *Engine) WritePseudoTag(name, value, comment, language string) error {
	var line string
	if language != "" {
		line = fmt.Sprintf("%s%s%s%s\t%s\t%s\n",
			PseudoTagPrefix, name, PseudoTagSeparator, language, value, comment)
	} else {
		line = fmt.Sprintf("%s%s\t%s\t/%s/\n",
			PseudoTagPrefix, name, value, comment)
	}

	n, err := en.file.write(line)
	if err != nil {
		return fmt.Errorf("cannot write tag file: %w", err)
	}
	en.file.numTags.added++
	en.rememberMaxLengths(len(name), n)
	return nil
}

// addPseudoTags writes the standard header block. The xref and JSON
// writers carry no header.
func (en *Engine) addPseudoTags() error {
	if en.opts.Xref || en.opts.JSON {
		return nil
	}

	formatComment := "unknown format"
	switch en.opts.TagFileFormat {
	case 1:
		formatComment = "original ctags format"
	case 2:
		formatComment = "extended format; --format=1 will not append ;\" to lines"
	}

	pairs := []struct{ name, value, comment string }{
		{"TAG_FILE_FORMAT", fmt.Sprintf("%d", en.opts.TagFileFormat), formatComment},
		{"TAG_FILE_SORTED", string(en.opts.Sorted.PseudoTagValue()),
			"0=unsorted, 1=sorted, 2=foldcase"},
		{"TAG_PROGRAM_AUTHOR", ProgramAuthor, ""},
		{"TAG_PROGRAM_NAME", ProgramName, ""},
		{"TAG_PROGRAM_URL", ProgramURL, "official site"},
		{"TAG_PROGRAM_VERSION", ProgramVersion, ""},
	}
	for _, p := range pairs {
		if err := en.WritePseudoTag(p.name, p.value, p.comment, ""); err != nil {
			return err
		}
	}
	if en.opts.OutputEncoding != "" {
		return en.WritePseudoTag("TAG_FILE_ENCODING", en.opts.OutputEncoding, "", "")
	}
	return nil
}

// updatePseudoTags walks the leading !_TAG_FILE lines of an existing
// tag file, rewriting the TAG_FILE_SORTED flag in place when it
// disagrees with the current options, and returns the total number of
// lines in the file.
func (en *Engine) updatePseudoTags(fp *os.File) int {
	const entry = PseudoTagPrefix + "TAG_FILE"

	lines := 0
	offset := int64(0)
	reader := bufio.NewReader(fp)

	for {
		line, err := reader.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		lineStart := offset
		offset += int64(len(line))
		lines++

		if !strings.HasPrefix(line, PseudoTagPrefix) {
			// Past the header block; count the remaining lines.
			for {
				rest, rerr := reader.ReadString('\n')
				if rest != "" {
					lines++
				}
				if rerr != nil {
					break
				}
			}
			break
		}
		if strings.HasPrefix(line, entry) &&
			strings.HasPrefix(line[len(entry):], "_SORTED\t") {
			en.updateSortedFlag(fp, line, lineStart)
		}
		if err != nil {
			break
		}
	}
	return lines
}

// updateSortedFlag overwrites the single flag byte of a
// TAG_FILE_SORTED line when it differs from the configured sort order.
// The file's byte length never changes.
func (en *Engine) updateSortedFlag(fp *os.File, line string, lineStart int64) {
	tab := strings.IndexByte(line, '\t')
	if tab < 0 || tab+1 >= len(line) {
		return
	}
	current := line[tab+1]
	if current != '0' && current != '1' && current != '2' {
		return
	}
	want := en.opts.Sorted.PseudoTagValue()
	if current == want {
		return
	}
	if _, err := fp.WriteAt([]byte{want}, lineStart+int64(tab)+1); err != nil {
		en.log.Warn("failed to update 'sorted' pseudo-tag", "error", err)
	}
}

// isTagFile reports whether the path is absent, empty, or starts with
// a recognizable tag or etags line. Anything else must not be
// clobbered.
func isTagFile(path string) bool {
	fp, err := os.Open(path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}
	defer fp.Close()

	reader := bufio.NewReader(fp)
	line, err := reader.ReadString('\n')
	if line == "" && err != nil {
		return true
	}
	return isCtagsLine(line) || isEtagsLine(line)
}

// isCtagsLine checks the 5-field tag line grammar: tag, single tab,
// file, single tab, ex address. Rejects lines that merely look taggish
// (comments, #define leftovers).
func isCtagsLine(line string) bool {
	line = strings.TrimRight(line, "\r\n")

	tab1 := strings.IndexByte(line, '\t')
	if tab1 <= 0 {
		return false
	}
	rest := line[tab1+1:]
	tab2 := strings.IndexByte(rest, '\t')
	if tab2 <= 0 {
		return false
	}
	tag := line[:tab1]
	file := rest[:tab2]
	excmd := rest[tab2+1:]

	if tag == "" || file == "" || excmd == "" {
		return false
	}
	// Tab runs must be exactly one character wide.
	if strings.HasPrefix(rest, "\t") || strings.HasPrefix(excmd, "\t") {
		return false
	}
	if tag[0] == '#' || strings.HasSuffix(file, ";") {
		return false
	}
	return isValidTagAddress(excmd)
}

// isValidTagAddress accepts a search command or a decimal line number,
// optionally followed by ;" extensions.
func isValidTagAddress(excmd string) bool {
	if excmd[0] == '/' || excmd[0] == '?' {
		return true
	}
	address := excmd
	if i := strings.IndexByte(address, ';'); i >= 0 {
		address = address[:i]
	}
	if address == "" {
		return false
	}
	for i := 0; i < len(address); i++ {
		if address[i] < '0' || address[i] > '9' {
			return false
		}
	}
	return true
}

func isEtagsLine(line string) bool {
	return len(line) >= 2 && line[0] == '\f' && (line[1] == '\n' || line[1] == '\r')
}

// CloseTagFile flushes and closes the tag file, truncating it to the
// written length when resize is requested and an append-mode merge
// left stale bytes behind. The sort stage runs afterwards; a stdout
// destination is then streamed out and its temp file removed.
func (en *Engine) CloseTagFile(resize bool) error {
	if en.opts.Etags {
		if err := en.writeEtagsIncludes(); err != nil {
			return err
		}
	}
	if err := en.file.fp.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("cannot write tag file: %w", err)
	}

	desiredSize, err := en.file.fp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("cannot write tag file: %w", err)
	}
	size, err := en.file.fp.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("cannot write tag file: %w", err)
	}

	if !en.file.toStdout {
		if err := en.file.fp.Close(); err != nil {
			return fmt.Errorf("cannot close tag file: %w", err)
		}
	}

	if resize && desiredSize > 0 && desiredSize < size {
		en.log.Debug("shrinking tag file",
			"name", en.file.name, "from", size, "to", desiredSize)
		if err := os.Truncate(en.file.name, desiredSize); err != nil {
			en.log.Error("cannot shorten tag file", "error", err)
		}
	}

	if err := en.sortTagFile(); err != nil {
		return err
	}

	if en.file.toStdout {
		if err := en.file.fp.Close(); err != nil {
			return fmt.Errorf("cannot close tag file: %w", err)
		}
		os.Remove(en.file.name)
	}
	en.file.fp = nil
	en.file.name = ""
	return nil
}

// catFile streams the whole tag file to stdout. Used when the
// destination is stdout and no sort pass rewrote it.
func (en *Engine) catFile() error {
	if _, err := en.file.fp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := io.Copy(os.Stdout, en.file.fp)
	return err
}
