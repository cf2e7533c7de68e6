package chatstream

import "strings"

const (
	ReasoningStartMarker = "<think>"
	ReasoningEndMarker   = "</think>"
)

type mode int

const (
	awaitingAnswer mode = iota
	inReasoning
)

// segmenter splits answer fragments into reasoning and answer text as they arrive.
// Text that could still be the start of a marker is held in pending until the
// next fragment (or a flush) disambiguates it, so pending never grows beyond
// len(marker)-1 bytes.
type segmenter struct {
	mode    mode
	pending string
}

func (s *segmenter) marker() string {
	if s.mode == inReasoning {
		return ReasoningEndMarker
	}
	return ReasoningStartMarker
}

func (s *segmenter) emit(events []Event, text string) []Event {
	if text == "" {
		return events
	}
	if s.mode == inReasoning {
		return append(events, ReasoningDelta{Text: text})
	}
	return append(events, AnswerDelta{Text: text})
}

func (s *segmenter) push(fragment string) []Event {
	var events []Event
	buf := s.pending + fragment
	s.pending = ""

	for {
		m := s.marker()
		if idx := strings.Index(buf, m); idx >= 0 {
			events = s.emit(events, buf[:idx])
			buf = buf[idx+len(m):]
			if s.mode == inReasoning {
				s.mode = awaitingAnswer
			} else {
				s.mode = inReasoning
			}
			continue
		}

		hold := partialSuffix(buf, m)
		events = s.emit(events, buf[:len(buf)-hold])
		s.pending = buf[len(buf)-hold:]
		return events
	}
}

// flush releases held text as answer text, even inside an unterminated
// reasoning segment, and resets the state machine.
func (s *segmenter) flush() []Event {
	var events []Event
	if s.pending != "" {
		events = append(events, AnswerDelta{Text: s.pending})
	}
	s.reset()
	return events
}

func (s *segmenter) open() bool {
	return s.mode == inReasoning
}

func (s *segmenter) reset() {
	s.mode = awaitingAnswer
	s.pending = ""
}

// partialSuffix returns the length of the longest proper prefix of marker that buf ends with.
func partialSuffix(buf, marker string) int {
	limit := len(marker) - 1
	if limit > len(buf) {
		limit = len(buf)
	}
	for k := limit; k > 0; k-- {
		if strings.HasSuffix(buf, marker[:k]) {
			return k
		}
	}
	return 0
}
