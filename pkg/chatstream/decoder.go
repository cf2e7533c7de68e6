package chatstream

// Decoder turns the protocol events of one turn into DecodedEvents.
//
// Feed must be called in arrival order. Once a terminal event (TurnComplete or
// Failure) has been produced the decoder ignores further input until Reset.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	seg       segmenter
	done      bool
	malformed int
}

// NewDecoder returns a decoder in the awaiting-answer state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed processes one protocol event and returns the events it produced.
func (d *Decoder) Feed(evt ProtocolEvent) []Event {
	if d.done || evt == nil {
		return nil
	}

	switch e := evt.(type) {
	case Answer:
		return d.seg.push(e.Text)
	case TurnEnd:
		events := d.seg.flush()
		d.done = true
		return append(events, TurnComplete{
			ConversationID: e.ConversationID,
			MessageID:      e.MessageID,
			Citations:      FilterCitations(e.Metadata.RetrieverResources),
		})
	case ServiceError:
		return d.Fail(FailureService, e.Message)
	}
	return nil
}

// FeedLine parses a raw transport line and feeds it.
// The returned error only reports a malformed line; the stream is not affected.
func (d *Decoder) FeedLine(line string) ([]Event, error) {
	evt, err := ParseLine(line)
	if err != nil {
		d.malformed++
		return nil, err
	}
	return d.Feed(evt), nil
}

// Fail aborts the turn with a Failure, used for faults outside the payload
// such as a dropped connection. Text still held back is released as answer
// text first so nothing already received is lost.
func (d *Decoder) Fail(kind FailureKind, reason string) []Event {
	if d.done {
		return nil
	}
	events := d.seg.flush()
	d.done = true
	return append(events, Failure{Kind: kind, Reason: reason})
}

// Finish signals end of stream. If no terminal event was seen the turn fails
// as an incomplete stream, after releasing any held text.
func (d *Decoder) Finish() []Event {
	if d.done {
		return nil
	}
	return d.Fail(FailureIncomplete, ReasonStreamClosed)
}

// Done reports whether a terminal event has been produced.
func (d *Decoder) Done() bool {
	return d.done
}

// InReasoning reports whether a reasoning segment is currently open.
func (d *Decoder) InReasoning() bool {
	return d.seg.open()
}

// Malformed returns how many lines were skipped as undecodable.
func (d *Decoder) Malformed() int {
	return d.malformed
}

// Reset prepares the decoder for another turn.
func (d *Decoder) Reset() {
	d.seg.reset()
	d.done = false
	d.malformed = 0
}
