package parser

import (
	"fmt"
	"strings"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/mention"
	"sentinel-nlmod/internal/modutil"
)

const systemTemplate = `You are the command analyzer of a Discord moderation bot used by Vietnamese and English speaking communities.
Decide whether the message asks the bot to perform a moderation action, and answer with ONE JSON object and nothing else.

Supported actions and the words that invoke them:
%s
JSON shape:
{"action": "<one of: %s, none>", "targets": ["<user id>"], "reason": "<text or empty>", "duration": "<'permanent', '<n> minutes' or empty>", "messageCount": <number or 0>, "confidence": <0.0-1.0>, "requiresConfirmation": <true|false>}

Rules:
- Only use user ids that appear in the mention list you are given. Never invent ids.
- Casual talk, jokes, questions about the bot and greetings are "none" with a low confidence.
- ban is always permanent; mute needs a duration of at most 4 weeks; kick, warn and deleteMessages take no duration.
- requiresConfirmation is true for ban, unban, or three or more targets.

Examples:
Message: "ban <@111> vì spam quá nhiều" mentions: [111]
{"action": "ban", "targets": ["111"], "reason": "spam quá nhiều", "duration": "permanent", "messageCount": 0, "confidence": 0.95, "requiresConfirmation": true}
Message: "câm <@222> 10 phút vì spam" mentions: [222]
{"action": "mute", "targets": ["222"], "reason": "spam", "duration": "10 minutes", "messageCount": 0, "confidence": 0.95, "requiresConfirmation": false}
Message: "xóa 30 tin nhắn của <@333>" mentions: [333]
{"action": "deleteMessages", "targets": ["333"], "reason": "", "duration": "", "messageCount": 30, "confidence": 0.9, "requiresConfirmation": false}
Message: "kick <@444> and <@555> for raiding" mentions: [444, 555]
{"action": "kick", "targets": ["444", "555"], "reason": "raiding", "duration": "", "messageCount": 0, "confidence": 0.9, "requiresConfirmation": false}
Message: "<@444> hôm nay bạn có khỏe không?" mentions: [444]
{"action": "none", "targets": [], "reason": "", "duration": "", "messageCount": 0, "confidence": 0.1, "requiresConfirmation": false}`

var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var aliases strings.Builder
	names := make([]string, 0, len(command.Actions))
	for _, action := range command.Actions {
		names = append(names, string(action))
		fmt.Fprintf(&aliases, "- %s: %s\n", action, strings.Join(modutil.ActionAliases[action], ", "))
	}
	return fmt.Sprintf(systemTemplate, aliases.String(), strings.Join(names, ", "))
}

func userPrompt(text string, ctx mention.Context, targets []command.TargetRef) string {
	ids := make([]string, 0, len(targets))
	for _, target := range targets {
		ids = append(ids, target.ID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Message: %q mentions: [%s]\n", text, strings.Join(ids, ", "))
	fmt.Fprintf(&b, "Signals: language=%s direct=%t casual=%t urgent=%t question=%t\n",
		ctx.Clues.Language, ctx.IsDirectCommand, ctx.IsCasualMention, ctx.Clues.Urgent, ctx.Clues.Question)
	return b.String()
}
