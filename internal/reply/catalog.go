package reply

import "fmt"

var catalog = map[string]map[string]string{
	"vi": {
		"denied_blacklist":        "Bạn đang bị chặn sử dụng lệnh quản lý.",
		"denied_permission":       "Bạn thiếu quyền %s để thực hiện lệnh này.",
		"denied_hierarchy":        "Bạn không thể xử lý thành viên có vai trò ngang hoặc cao hơn mình.",
		"denied_cooldown":         "Bạn thao tác quá nhanh, thử lại sau %s.",
		"denied_rate_minute":      "Bạn đã đạt giới hạn lệnh mỗi phút, thử lại sau %s.",
		"denied_rate_hour":        "Bạn đã đạt giới hạn lệnh mỗi giờ, thử lại sau %s.",
		"denied_protected":        "%s đang được bảo vệ.",
		"denied_self":             "Bạn không thể tự xử lý chính mình.",
		"denied_bot":              "Không thể xử lý bot (%s).",
		"denied_owner":            "Không thể xử lý chủ server.",
		"denied_target_hierarchy": "%s có vai trò ngang hoặc cao hơn bạn.",
		"denied_bot_hierarchy":    "Vai trò của %s cao hơn hoặc ngang bot.",
		"denied_generic":          "Lệnh bị từ chối: %s",
		"duration_invalid":        "Thời hạn không hợp lệ cho lệnh %s: %s",
		"clarify_target":          "Bạn muốn %s ai? Hãy nhắc (@) thành viên cần xử lý.",
		"clarify_ambiguous":       "Bạn muốn %s %s phải không? Hãy nói rõ hơn hoặc dùng lệnh /mod.",
		"confirm_title":           "Xác nhận: %s",
		"confirm_description":     "Bạn sắp %s %d thành viên. Nhấn xác nhận trong %d giây.",
		"confirm_button":          "Xác nhận",
		"cancel_button":           "Hủy",
		"confirm_not_found":       "Yêu cầu xác nhận không tồn tại hoặc đã hết hạn.",
		"confirm_not_requester":   "Chỉ người tạo yêu cầu mới có thể xác nhận.",
		"confirm_cancelled":       "Đã hủy yêu cầu.",
		"action_done_title":       "%s thành công",
		"action_failed_title":     "%s thất bại",
		"action_partial_title":    "%s hoàn tất một phần",
		"field_targets":           "Thành viên",
		"field_reason":            "Lý do",
		"field_duration":          "Thời hạn",
		"field_result":            "Kết quả",
		"field_errors":            "Lỗi",
		"field_batch":             "Mã lô",
		"result_counts":           "%d thành công, %d thất bại",
		"batch_queued":            "Đã xếp hàng lô %s với %d thành viên.",
		"batch_progress":          "Lô %s: %d/%d (%d thành công, %d thất bại)",
		"batch_cancelled":         "Đã hủy lô %s.",
		"batch_not_found":         "Không tìm thấy lô %s.",
		"batch_too_large":         "Tối đa %d thành viên mỗi lệnh.",
		"batch_status":            "Lô %s: %s, %d/%d",
		"no_targets":              "Không có thành viên hợp lệ để xử lý.",
		"undo_none":               "Không có hành động nào để hoàn tác trong %s.",
		"undo_done":               "Đã hoàn tác %s.",
		"recent_none":             "Không có hành động gần đây.",
		"recent_title":            "Hành động gần đây",
		"stats_title":             "Thống kê kiểm duyệt",
		"admin_ok":                "Đã cập nhật.",
		"admin_forbidden":         "Bạn cần quyền quản trị để dùng lệnh này.",
		"admin_failed":            "Không thể cập nhật: %s",
		"limits_reset":            "Đã đặt lại %d giới hạn của %s.",
		"chat_unavailable":        "Chào bạn! Mình là bot quản lý. Hãy nhắc mình kèm lệnh, ví dụ: `câm @user 10 phút vì spam`.",
		"lookup_failed":           "Không thể xác minh thành viên, hãy thử lại sau.",
		"confirm_expired":         "Yêu cầu %s đã hết hạn và bị hủy.",
		"stats_actions":           "Hành động (24 giờ)",
		"stats_actions_value":     "%d tổng, %d thành công, %d thất bại",
		"stats_queue":             "Hàng đợi",
		"stats_queue_value":       "%d chờ, %d đang chạy, %d xong, %d lỗi, %d hủy",
		"stats_lists":             "Danh sách",
		"stats_lists_value":       "bảo vệ %d, chặn %d, tin cậy %d",
		"stats_denials":           "Lượt từ chối",
		"stats_pending":           "Đang chờ xác nhận",
		"settings_title":          "Cài đặt",
		"unknown_list":            "Danh sách không hợp lệ: %s",
		"permanent":               "vĩnh viễn",
	},
	"en": {
		"denied_blacklist":        "You are blocked from using moderation commands.",
		"denied_permission":       "You need the %s permission for this command.",
		"denied_hierarchy":        "You cannot moderate members whose role is equal to or above yours.",
		"denied_cooldown":         "You are going too fast, try again in %s.",
		"denied_rate_minute":      "Per-minute command limit reached, try again in %s.",
		"denied_rate_hour":        "Hourly command limit reached, try again in %s.",
		"denied_protected":        "%s is protected.",
		"denied_self":             "You cannot moderate yourself.",
		"denied_bot":              "Bots cannot be moderated (%s).",
		"denied_owner":            "The server owner cannot be moderated.",
		"denied_target_hierarchy": "%s has a role equal to or above yours.",
		"denied_bot_hierarchy":    "%s has a role equal to or above the bot.",
		"denied_generic":          "Command denied: %s",
		"duration_invalid":        "Invalid duration for %s: %s",
		"clarify_target":          "Who should I %s? Mention the member(s) to act on.",
		"clarify_ambiguous":       "Did you mean to %s %s? Please be more specific or use /mod.",
		"confirm_title":           "Confirm: %s",
		"confirm_description":     "You are about to %s %d member(s). Confirm within %d seconds.",
		"confirm_button":          "Confirm",
		"cancel_button":           "Cancel",
		"confirm_not_found":       "This confirmation does not exist or has expired.",
		"confirm_not_requester":   "Only the requester can confirm this action.",
		"confirm_cancelled":       "Request cancelled.",
		"action_done_title":       "%s succeeded",
		"action_failed_title":     "%s failed",
		"action_partial_title":    "%s partially completed",
		"field_targets":           "Members",
		"field_reason":            "Reason",
		"field_duration":          "Duration",
		"field_result":            "Result",
		"field_errors":            "Errors",
		"field_batch":             "Batch",
		"result_counts":           "%d succeeded, %d failed",
		"batch_queued":            "Queued batch %s with %d member(s).",
		"batch_progress":          "Batch %s: %d/%d (%d succeeded, %d failed)",
		"batch_cancelled":         "Cancelled batch %s.",
		"batch_not_found":         "Batch %s not found.",
		"batch_too_large":         "At most %d members per command.",
		"batch_status":            "Batch %s: %s, %d/%d",
		"no_targets":              "No valid members to act on.",
		"undo_none":               "Nothing to undo within %s.",
		"undo_done":               "Undid %s.",
		"recent_none":             "No recent actions.",
		"recent_title":            "Recent actions",
		"stats_title":             "Moderation statistics",
		"admin_ok":                "Updated.",
		"admin_forbidden":         "You need administrator permission for this command.",
		"admin_failed":            "Could not update: %s",
		"limits_reset":            "Reset %d limit window(s) for %s.",
		"chat_unavailable":        "Hi! I am the moderation bot. Mention me with a command, e.g. `mute @user 10 minutes for spam`.",
		"lookup_failed":           "Could not verify the member, please try again later.",
		"confirm_expired":         "Request %s expired and was cancelled.",
		"stats_actions":           "Actions (24h)",
		"stats_actions_value":     "%d total, %d succeeded, %d failed",
		"stats_queue":             "Queue",
		"stats_queue_value":       "%d queued, %d running, %d done, %d failed, %d cancelled",
		"stats_lists":             "Lists",
		"stats_lists_value":       "protected %d, blacklisted %d, whitelisted %d",
		"stats_denials":           "Denials",
		"stats_pending":           "Pending confirmations",
		"settings_title":          "Settings",
		"unknown_list":            "Unknown list: %s",
		"permanent":               "permanent",
	},
}

// T formats the message key in lang, falling back to English and then to
// the key itself.
func T(lang, key string, args ...any) string {
	messages, ok := catalog[lang]
	if !ok {
		messages = catalog["en"]
	}
	format, ok := messages[key]
	if !ok {
		format, ok = catalog["en"][key]
		if !ok {
			return key
		}
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}
