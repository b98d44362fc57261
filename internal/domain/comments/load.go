package comments

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/t114/support-clip/internal/types"
)

// live-chat replay packets, one JSON object per line.
type chatPacket struct {
	ReplayChatItemAction *chatActions `json:"replayChatItemAction"`
	Actions              []chatAction `json:"actions"`
	VideoOffsetTimeMsec  string       `json:"videoOffsetTimeMsec"`
}

type chatActions struct {
	Actions             []chatAction `json:"actions"`
	VideoOffsetTimeMsec string       `json:"videoOffsetTimeMsec"`
}

type chatAction struct {
	AddChatItemAction *struct {
		Item chatItem `json:"item"`
	} `json:"addChatItemAction"`
}

type chatItem struct {
	TextMessage *chatRenderer `json:"liveChatTextMessageRenderer"`
	PaidMessage *paidRenderer `json:"liveChatPaidMessageRenderer"`
	Membership  *memberRenderer `json:"liveChatMembershipItemRenderer"`
}

type chatRenderer struct {
	Message             runsHolder `json:"message"`
	VideoOffsetTimeMsec string     `json:"videoOffsetTimeMsec"`
}

type paidRenderer struct {
	Message            runsHolder `json:"message"`
	PurchaseAmountText struct {
		SimpleText string `json:"simpleText"`
	} `json:"purchaseAmountText"`
}

type memberRenderer struct {
	HeaderSubtext runsHolder `json:"headerSubtext"`
	Message       runsHolder `json:"message"`
}

type runsHolder struct {
	Runs []messageRun `json:"runs"`
}

type messageRun struct {
	Text  string `json:"text"`
	Emoji *struct {
		Shortcuts []string `json:"shortcuts"`
		Image     struct {
			Accessibility struct {
				AccessibilityData struct {
					Label string `json:"label"`
				} `json:"accessibilityData"`
			} `json:"accessibility"`
		} `json:"image"`
	} `json:"emoji"`
}

// textFromRuns concatenates text runs and emoji shortcut runs into one
// string, so stamp tokens like :_mioハトタウロス: survive into the stream.
func textFromRuns(runs []messageRun) string {
	var b strings.Builder
	for _, r := range runs {
		switch {
		case r.Text != "":
			b.WriteString(r.Text)
		case r.Emoji != nil:
			if len(r.Emoji.Shortcuts) > 0 {
				b.WriteString(r.Emoji.Shortcuts[0])
			} else if label := r.Emoji.Image.Accessibility.AccessibilityData.Label; label != "" {
				b.WriteString(":" + label + ":")
			}
		}
	}
	return b.String()
}

// LoadLiveChat reads a YouTube live-chat replay dump (NDJSON). Malformed
// lines are skipped; a missing file yields an empty stream. Events come back
// ordered by timestamp.
func LoadLiveChat(path string, logger zerolog.Logger) []types.CommentEvent {
	f, err := os.Open(path)
	if err != nil {
		logger.Debug().Str("path", path).Err(err).Msg("no live chat file")
		return nil
	}
	defer f.Close()

	var out []types.CommentEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var pkt chatPacket
		if err := json.Unmarshal(sc.Bytes(), &pkt); err != nil {
			continue
		}
		actions := pkt.Actions
		offsetMsec := pkt.VideoOffsetTimeMsec
		if pkt.ReplayChatItemAction != nil {
			if len(pkt.ReplayChatItemAction.Actions) > 0 {
				actions = pkt.ReplayChatItemAction.Actions
			}
			if pkt.ReplayChatItemAction.VideoOffsetTimeMsec != "" {
				offsetMsec = pkt.ReplayChatItemAction.VideoOffsetTimeMsec
			}
		}
		for _, a := range actions {
			if a.AddChatItemAction == nil {
				continue
			}
			item := a.AddChatItemAction.Item
			text := ""
			itemOffset := offsetMsec
			switch {
			case item.TextMessage != nil:
				text = textFromRuns(item.TextMessage.Message.Runs)
				if item.TextMessage.VideoOffsetTimeMsec != "" {
					itemOffset = item.TextMessage.VideoOffsetTimeMsec
				}
			case item.PaidMessage != nil:
				text = textFromRuns(item.PaidMessage.Message.Runs)
				if amount := item.PaidMessage.PurchaseAmountText.SimpleText; amount != "" {
					text = "[" + amount + "] " + text
				}
			case item.Membership != nil:
				header := textFromRuns(item.Membership.HeaderSubtext.Runs)
				msg := textFromRuns(item.Membership.Message.Runs)
				text = strings.TrimSpace(header + " " + msg)
			}
			if text == "" || itemOffset == "" {
				continue
			}
			msec, err := strconv.ParseInt(itemOffset, 10, 64)
			if err != nil {
				continue
			}
			out = append(out, types.CommentEvent{Timestamp: float64(msec) / 1000.0, Text: text})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	logger.Info().Str("path", path).Int("comments", len(out)).Msg("loaded live chat")
	return out
}

// LoadJSON reads a plain JSON array of {text, timestamp} comment events,
// the shape the acquisition collaborator hands over. Any failure yields an
// empty stream.
func LoadJSON(path string, logger zerolog.Logger) []types.CommentEvent {
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Debug().Str("path", path).Err(err).Msg("no comments file")
		return nil
	}
	var out []types.CommentEvent
	if err := json.Unmarshal(b, &out); err != nil {
		logger.Warn().Str("path", path).Err(err).Msg("malformed comments file")
		return nil
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Load picks the loader from the file name: *.live_chat.json is NDJSON chat
// replay, anything else a plain array.
func Load(path string, logger zerolog.Logger) []types.CommentEvent {
	if strings.HasSuffix(path, ".live_chat.json") {
		return LoadLiveChat(path, logger)
	}
	return LoadJSON(path, logger)
}
