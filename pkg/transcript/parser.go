// Package transcript parses raw transcript text into ordered segments with
// speaker attribution and mined metadata.
package transcript

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

var speakerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s*:\s*(.+)$`),
	regexp.MustCompile(`^\[([^\]]+)\]\s*(.+)$`),
	regexp.MustCompile(`^-\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s*:\s*(.+)$`),
	regexp.MustCompile(`^•\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s*:\s*(.+)$`),
	// "Speaker N" style labels used by machine transcription.
	regexp.MustCompile(`^(Speaker\s+\d+)\s*:\s*(.+)$`),
}

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^Date:\s*(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`(?im)^Date:\s*(\d{1,2}/\d{1,2}/\d{4})`),
		regexp.MustCompile(`(?im)^Meeting Date:\s*([^\n]+)`),
	}
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^Title:\s*([^\n]+)`),
		regexp.MustCompile(`(?m)^Meeting:\s*([^\n]+)`),
		regexp.MustCompile(`(?m)^Subject:\s*([^\n]+)`),
		regexp.MustCompile(`(?m)^#\s+(.+)$`),
	}
	durationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^Duration:\s*([^\n]+)`),
		regexp.MustCompile(`(?im)^Length:\s*([^\n]+)`),
	}
)

// speakerDetectionWindow and speakerDetectionRatio control the heuristic for
// deciding whether a transcript carries speaker labels at all.
const (
	speakerDetectionWindow = 50
	speakerDetectionRatio  = 0.3
)

// Parse converts raw transcript text into a Transcript. filename may be empty.
func Parse(raw string, filename string) *models.Transcript {
	metadata := extractMetadata(raw, filename)
	lines := strings.Split(strings.TrimSpace(raw), "\n")

	hasSpeakers := detectSpeakers(lines)

	var segments []models.TranscriptSegment
	var speakers []models.Speaker
	if hasSpeakers {
		segments, speakers = parseWithSpeakers(lines)
	} else {
		segments = parseWithoutSpeakers(lines)
	}

	words := 0
	for _, seg := range segments {
		words += len(strings.Fields(seg.Text))
	}
	metadata.WordCount = words
	metadata.SegmentCount = len(segments)
	metadata.SpeakerCount = len(speakers)

	slog.Debug("Parsed transcript",
		"segments", len(segments),
		"speakers", len(speakers),
		"has_speaker_names", hasSpeakers)

	return &models.Transcript{
		Segments:        segments,
		Speakers:        speakers,
		Metadata:        metadata,
		RawText:         raw,
		HasSpeakerNames: hasSpeakers,
	}
}

func extractMetadata(text, filename string) models.TranscriptMetadata {
	md := models.TranscriptMetadata{Filename: filename}

	for _, pat := range datePatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			for _, layout := range []string{"2006-01-02", "1/2/2006", "2/1/2006"} {
				if d, err := time.Parse(layout, strings.TrimSpace(m[1])); err == nil {
					md.Date = &d
					break
				}
			}
			break
		}
	}
	for _, pat := range titlePatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			md.Title = strings.TrimSpace(m[1])
			break
		}
	}
	for _, pat := range durationPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			md.Duration = strings.TrimSpace(m[1])
			break
		}
	}
	return md
}

func matchSpeaker(line string) (speaker, text string, ok bool) {
	for _, pat := range speakerPatterns {
		if m := pat.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
		}
	}
	return "", "", false
}

func detectSpeakers(lines []string) bool {
	matched, total := 0, 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		total++
		if total > speakerDetectionWindow {
			break
		}
		if _, _, ok := matchSpeaker(line); ok {
			matched++
		}
	}
	if total == 0 {
		return false
	}
	return float64(matched)/float64(total) > speakerDetectionRatio
}

// segmentBuilder accumulates segments and speaker stats during the line scan.
type segmentBuilder struct {
	segments []models.TranscriptSegment
	speakers map[string]*models.Speaker
	order    []string
	nextID   int
}

func (b *segmentBuilder) flush(speaker string, parts []string) {
	if len(parts) == 0 {
		return
	}
	text := strings.Join(parts, " ")
	b.segments = append(b.segments, models.TranscriptSegment{
		SegmentID: b.nextID,
		Speaker:   speaker,
		Text:      text,
	})
	b.nextID++

	if speaker == "" {
		return
	}
	sp, ok := b.speakers[speaker]
	if !ok {
		sp = &models.Speaker{
			ID:   strings.ReplaceAll(strings.ToLower(speaker), " ", "_"),
			Name: speaker,
		}
		b.speakers[speaker] = sp
		b.order = append(b.order, speaker)
	}
	sp.SegmentsCount++
	sp.TotalWords += len(strings.Fields(text))
}

func parseWithSpeakers(lines []string) ([]models.TranscriptSegment, []models.Speaker) {
	b := &segmentBuilder{speakers: make(map[string]*models.Speaker)}
	var current string
	var parts []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			b.flush(current, parts)
			parts = nil
			continue
		}
		if speaker, text, ok := matchSpeaker(line); ok {
			b.flush(current, parts)
			current = speaker
			parts = []string{text}
			continue
		}
		parts = append(parts, line)
	}
	b.flush(current, parts)

	speakers := make([]models.Speaker, 0, len(b.order))
	for _, name := range b.order {
		speakers = append(speakers, *b.speakers[name])
	}
	return b.segments, speakers
}

func parseWithoutSpeakers(lines []string) []models.TranscriptSegment {
	b := &segmentBuilder{speakers: make(map[string]*models.Speaker)}
	var parts []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			b.flush("", parts)
			parts = nil
			continue
		}
		parts = append(parts, line)
	}
	b.flush("", parts)

	// Whole text as one segment if nothing split.
	if len(b.segments) == 0 {
		var all []string
		for _, line := range lines {
			if s := strings.TrimSpace(line); s != "" {
				all = append(all, s)
			}
		}
		if len(all) > 0 {
			b.segments = append(b.segments, models.TranscriptSegment{
				SegmentID: 0,
				Text:      strings.Join(all, " "),
			})
		}
	}
	return b.segments
}
