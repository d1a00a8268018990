package lyrics

// Cue is the line active at some playback position. Index is -1 when no line
// is active and the display should be blank.
type Cue struct {
	Index int
	Line  Line
}

func (c Cue) Active() bool { return c.Index >= 0 }

var blankCue = Cue{Index: -1}

// CueEngine tracks which lyric line is active as playback advances and
// reports only the positions where the active line changes.
type CueEngine struct {
	track    Track
	cursor   int
	offsetMs int64
}

func NewCueEngine() *CueEngine {
	return &CueEngine{cursor: -1}
}

// Prime replaces the lyric track and resets the cursor.
func (e *CueEngine) Prime(t Track) {
	e.track = t
	e.cursor = -1
}

// Advance evaluates positionMs and returns the newly active cue when it
// differs from the last one reported.
func (e *CueEngine) Advance(positionMs int64) (Cue, bool) {
	idx := e.track.IndexAt(positionMs + e.offsetMs)
	if idx == e.cursor {
		return Cue{}, false
	}
	e.cursor = idx
	return e.cueAt(idx), true
}

// Seek re-scans from the start after a jump in position and returns the cue
// active at the new position, even when it is the one already shown.
func (e *CueEngine) Seek(positionMs int64) Cue {
	e.cursor = e.track.IndexAt(positionMs + e.offsetMs)
	return e.cueAt(e.cursor)
}

func (e *CueEngine) SetOffset(ms int64) { e.offsetMs = ms }
func (e *CueEngine) Offset() int64      { return e.offsetMs }

// Current returns the last reported cue.
func (e *CueEngine) Current() (Cue, bool) {
	if e.cursor < 0 || e.cursor >= len(e.track) {
		return blankCue, false
	}
	return e.cueAt(e.cursor), true
}

func (e *CueEngine) Len() int     { return len(e.track) }
func (e *CueEngine) Lines() Track { return e.track }
func (e *CueEngine) Cursor() int  { return e.cursor }

func (e *CueEngine) cueAt(idx int) Cue {
	if idx < 0 || idx >= len(e.track) {
		return blankCue
	}
	return Cue{Index: idx, Line: e.track[idx]}
}
