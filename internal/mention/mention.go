// Package mention extracts references and conversational signals from raw
// message text. It makes no network calls and never fails: unresolved or
// malformed mentions are skipped.
package mention

import (
	"regexp"
	"strings"

	"sentinel-nlmod/internal/modutil"
	"sentinel-nlmod/internal/utils"
)

// MaxCommandGap is how many words may separate a command verb from the
// mention it applies to.
const MaxCommandGap = 4

type Mentions struct {
	Users    []string
	Roles    []string
	Channels []string
}

type Relation string

const (
	RelationHigher  Relation = "higher"
	RelationEqual   Relation = "equal"
	RelationLower   Relation = "lower"
	RelationUnknown Relation = "unknown"
)

// Relationship compares a mentioned user's role position with the author's.
type Relationship struct {
	UserID   string
	Position int
	Relation Relation
}

type Emotion string

const (
	EmotionNeutral  Emotion = "neutral"
	EmotionAngry    Emotion = "angry"
	EmotionPositive Emotion = "positive"
)

type Clues struct {
	Urgent      bool
	Emotion     Emotion
	Question    bool
	Exclamation bool
	Language    string
}

type Context struct {
	Mentions          Mentions
	BotMentioned      bool
	IsDirectCommand   bool
	IsCasualMention   bool
	IsBatchOperation  bool
	Command           modutil.ActionMatch
	UserRelationships []Relationship
	Clues             Clues
}

// Input carries the message text and whatever the platform resolved. When
// Users is nil the user mentions are read from the text itself.
type Input struct {
	Text               string
	BotID              string
	Users              []string
	Roles              []string
	Channels           []string
	AuthorRolePosition int
	RolePositions      map[string]int
}

var (
	casualRegex   = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(xin chào|chào|chao|hello|hi|hey|yo|cảm ơn|cam on|cám ơn|thanks?|thank you|thx|haha+|hihi|hehe|lol|lmao|khỏe không|khoe khong|how are you|what'?s up|sup|good (?:morning|night|evening)|chúc ngủ ngon|bạn ơi|ban oi|bot ơi|bot oi|đùa|dua thoi|joke|kể chuyện|tell me)(?:[^\p{L}]|$)`)
	urgentRegex   = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(gấp|gap|ngay|ngay lập tức|khẩn|khan cap|urgent|asap|now|immediately|right now|quick(?:ly)?)(?:[^\p{L}]|$)`)
	angryRegex    = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(tức|bực|điên|cay|ghét|angry|mad|annoying|wtf|stfu|fuck|đm|vl|vcl)(?:[^\p{L}]|$)|!{3,}`)
	happyRegex    = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(vui|thích|yêu|tuyệt|happy|love|great|awesome|nice|cool|haha+|hihi)(?:[^\p{L}]|$)|[:;]-?\)|❤|😂|😄|😊`)
	questionRegex = regexp.MustCompile(`(?i)\?|(?:^|[^\p{L}])(sao|tại sao|thế nào|gì|không nhỉ|why|what|how|when|where|who|is it|can you)(?:[^\p{L}]|$)`)
	viWordRegex   = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(vi|vì|cho|của|nó|ông|thằng|bạn|đi|không|khong|nha|nhé|ạ)(?:[^\p{L}]|$)`)
)

// Analyze classifies a message as a likely direct command, a casual mention
// of the bot, or neither.
func Analyze(in Input) Context {
	normalized := utils.Normalize(in.Text)

	users := in.Users
	if users == nil {
		users = utils.UserMentionIDs(in.Text)
	}
	roles := in.Roles
	if roles == nil {
		roles = utils.RoleMentionIDs(in.Text)
	}
	channels := in.Channels
	if channels == nil {
		channels = utils.ChannelMentionIDs(in.Text)
	}

	ctx := Context{
		Mentions: Mentions{
			Users:    dedupe(users),
			Roles:    dedupe(roles),
			Channels: dedupe(channels),
		},
	}

	var targets []string
	for _, id := range ctx.Mentions.Users {
		if id == "" {
			continue
		}
		if in.BotID != "" && id == in.BotID {
			ctx.BotMentioned = true
			continue
		}
		targets = append(targets, id)
	}

	if match, ok := CommandNearMention(in.Text, in.BotID); ok && len(targets) > 0 {
		ctx.IsDirectCommand = true
		ctx.Command = match
	}
	ctx.IsCasualMention = ctx.BotMentioned && casualRegex.MatchString(normalized)
	ctx.IsBatchOperation = len(targets) > 1

	for _, id := range targets {
		ctx.UserRelationships = append(ctx.UserRelationships, relate(id, in.AuthorRolePosition, in.RolePositions))
	}

	ctx.Clues = Clues{
		Urgent:      urgentRegex.MatchString(normalized),
		Emotion:     emotionOf(normalized),
		Question:    questionRegex.MatchString(normalized),
		Exclamation: strings.Contains(normalized, "!"),
		Language:    DetectLanguage(in.Text),
	}
	return ctx
}

// CommandNearMention finds the first action alias that sits within
// MaxCommandGap words of a user mention other than the bot's.
func CommandNearMention(text, botID string) (modutil.ActionMatch, bool) {
	normalized := utils.Normalize(text)
	spans := utils.MentionSpans(normalized)
	if len(spans) == 0 {
		return modutil.ActionMatch{}, false
	}
	ids := mentionIDsAt(normalized, spans)

	for _, match := range modutil.FindActions(text) {
		for i, span := range spans {
			if botID != "" && ids[i] == botID {
				continue
			}
			var gap string
			switch {
			case span[0] >= match.End:
				gap = normalized[match.End:span[0]]
			case span[1] <= match.Start:
				gap = normalized[span[1]:match.Start]
			default:
				continue
			}
			if wordCount(gap) <= MaxCommandGap {
				return match, true
			}
		}
	}
	return modutil.ActionMatch{}, false
}

// DetectLanguage returns "vi" for Vietnamese text and "en" otherwise.
func DetectLanguage(text string) string {
	if utils.HasVietnamese(text) {
		return "vi"
	}
	if viWordRegex.MatchString(utils.Normalize(text)) {
		return "vi"
	}
	return "en"
}

func emotionOf(text string) Emotion {
	switch {
	case angryRegex.MatchString(text):
		return EmotionAngry
	case happyRegex.MatchString(text):
		return EmotionPositive
	default:
		return EmotionNeutral
	}
}

func relate(userID string, author int, positions map[string]int) Relationship {
	position, ok := positions[userID]
	if !ok {
		return Relationship{UserID: userID, Relation: RelationUnknown}
	}
	rel := Relationship{UserID: userID, Position: position}
	switch {
	case position > author:
		rel.Relation = RelationHigher
	case position == author:
		rel.Relation = RelationEqual
	default:
		rel.Relation = RelationLower
	}
	return rel
}

func mentionIDsAt(text string, spans [][]int) []string {
	ids := make([]string, len(spans))
	for i, span := range spans {
		token := strings.TrimSuffix(strings.TrimPrefix(text[span[0]:span[1]], "<@"), ">")
		ids[i] = strings.TrimPrefix(token, "!")
	}
	return ids
}

// wordCount ignores other mention tokens so "ban <@1> <@2>" keeps both close.
func wordCount(gap string) int {
	gap = utils.StripMentions(gap)
	count := 0
	for _, field := range strings.Fields(gap) {
		if strings.Trim(field, ",.;:&+-") == "" {
			continue
		}
		count++
	}
	return count
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
