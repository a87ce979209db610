package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/franzego/registry-backoffice/internal/api"
	"github.com/franzego/registry-backoffice/internal/models"
)

const defaultTitle = "Notificación"

var (
	idKeys        = []string{"id", "notificationId", "uuid"}
	titleKeys     = []string{"title", "subject"}
	messageKeys   = []string{"message", "content", "body", "description"}
	timestampKeys = []string{"createdAt", "timestamp", "date"}
	readKeys      = []string{"read", "isRead"}
	priorityKeys  = []string{"priority", "severity", "importance"}
	typeKeys      = []string{"type", "category", "source"}
	roleKeys      = []string{"targetRoles", "targets", "roles", "audience", "recipientRoles", "recipients"}
	metaKeys      = []string{"metadata", "meta"}

	highTokens = []string{"high", "alta", "urgent", "urgente", "critical", "crítico", "critico"}
	lowTokens  = []string{"low", "baja", "informativo", "info"}

	timeLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// MapRecord turns one backend notification record of any shape into a
// canonical notification. index feeds the fallback id; now is used when
// the record has no usable timestamp. It never panics.
func MapRecord(raw any, index int, now time.Time) models.Notification {
	obj, _ := api.AsObject(raw)

	id, ok := api.StringField(obj, idKeys...)
	if !ok {
		id = fmt.Sprintf("notification-%d", index)
	}
	title, ok := api.StringField(obj, titleKeys...)
	if !ok {
		title = defaultTitle
	}
	message, ok := api.StringField(obj, messageKeys...)
	if !ok {
		message = title
	}
	createdAt, ok := timestampField(obj)
	if !ok {
		createdAt = now
	}

	priority := InferPriority(obj)
	explicitType, _ := api.StringField(obj, typeKeys...)
	metadata, _ := api.ObjectField(obj, metaKeys...)
	related, _ := api.StringField(obj, "relatedRequestId", "requestId")

	return models.Notification{
		ID:               id,
		Title:            title,
		Message:          message,
		CreatedAt:        createdAt.UTC(),
		Read:             readFlag(obj),
		Priority:         priority,
		Type:             resolveType(explicitType, priority),
		TargetRoles:      ExtractTargetRoles(obj),
		Source:           models.SourceRemote,
		RelatedRequestID: related,
		Metadata:         metadata,
		Raw:              raw,
	}
}

func resolveType(explicit string, priority models.Priority) string {
	if t := strings.ToLower(strings.TrimSpace(explicit)); t != "" {
		return t
	}
	if priority == models.PriorityHigh {
		return "alert"
	}
	return "general"
}

// readFlag treats an explicit read flag or a status such as "READ" or
// "leído/read" as read. "unread" statuses stay unread.
func readFlag(obj map[string]any) bool {
	if read, ok := api.BoolField(obj, readKeys...); ok && read {
		return true
	}
	status, ok := api.StringField(obj, "status")
	if !ok {
		return false
	}
	status = strings.ToLower(status)
	return strings.Contains(status, "read") && !strings.Contains(status, "unread")
}

// InferPriority reads the free-text priority fields of a record.
func InferPriority(obj map[string]any) models.Priority {
	text, ok := api.StringField(obj, priorityKeys...)
	if !ok {
		return models.PriorityMedium
	}
	return ParsePriority(text)
}

// ParsePriority maps free text such as "Alta" or "informativo" onto a priority.
func ParsePriority(text string) models.Priority {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, tok := range highTokens {
		if strings.Contains(text, tok) {
			return models.PriorityHigh
		}
	}
	for _, tok := range lowTokens {
		if strings.Contains(text, tok) {
			return models.PriorityLow
		}
	}
	return models.PriorityMedium
}

func timestampField(obj map[string]any) (time.Time, bool) {
	for _, k := range timestampKeys {
		if t, ok := parseTimestamp(obj[k]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimestamp(v any) (time.Time, bool) {
	s, ok := api.Stringify(v)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil && encodable(t) {
			return t, true
		}
	}
	f, ok := api.FloatField(map[string]any{"v": v}, "v")
	if !ok || f <= 0 || f > maxEpochMillis {
		return time.Time{}, false
	}
	// Values past 1e12 can only be epoch milliseconds.
	var t time.Time
	if f >= 1e12 {
		t = time.UnixMilli(int64(f))
	} else {
		t = time.Unix(int64(f), 0)
	}
	if !encodable(t) {
		return time.Time{}, false
	}
	return t, true
}

// maxEpochMillis is the last millisecond of year 9999.
const maxEpochMillis = 253402300799999

// encodable reports whether t survives time.Time.MarshalJSON.
func encodable(t time.Time) bool {
	y := t.UTC().Year()
	return y >= 1 && y <= 9999
}

var roleAliases = map[string]models.Role{
	"admin":         models.RoleAdmin,
	"administrador": models.RoleAdmin,
	"supervisor":    models.RoleSupervisor,
	"manager":       models.RoleSupervisor,
	"analyst":       models.RoleAnalyst,
	"analista":      models.RoleAnalyst,
	"all":           models.RoleAll,
	"todos":         models.RoleAll,
}

var roleOrder = []models.Role{models.RoleAdmin, models.RoleSupervisor, models.RoleAnalyst, models.RoleAll}

// NormalizeRole maps a backend or user role name onto a target role.
func NormalizeRole(name string) (models.Role, bool) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(name))]
	return role, ok
}

// CurrentUserRole resolves the session user's role from its role and
// roleLevel claims. Unknown roles resolve to RoleAll.
func CurrentUserRole(role, roleLevel string) models.Role {
	if r, ok := NormalizeRole(role); ok {
		return r
	}
	if r, ok := NormalizeRole(roleLevel); ok {
		return r
	}
	return models.RoleAll
}

// ExtractTargetRoles collects the audiences a record is addressed to.
// The result is never empty.
func ExtractTargetRoles(obj map[string]any) []models.Role {
	found := make(map[models.Role]bool)
	collectRoleKeys(obj, found, 0)
	return orderedRoles(found)
}

// maxRoleDepth bounds the walk over nested role containers.
const maxRoleDepth = 8

func collectRoleKeys(obj map[string]any, found map[models.Role]bool, depth int) {
	if obj == nil || depth > maxRoleDepth {
		return
	}
	for _, k := range roleKeys {
		collectRoleValue(obj[k], found, depth+1)
	}
	for _, k := range metaKeys {
		if inner, ok := api.AsObject(obj[k]); ok {
			collectRoleKeys(inner, found, depth+1)
		}
	}
}

func collectRoleValue(v any, found map[models.Role]bool, depth int) {
	if depth > maxRoleDepth {
		return
	}
	switch t := v.(type) {
	case string:
		for _, part := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ';' || r == '|' }) {
			if role, ok := NormalizeRole(part); ok {
				found[role] = true
			}
		}
	case models.Role:
		collectRoleValue(string(t), found, depth)
	case map[string]any:
		if name, ok := api.StringField(t, "role"); ok {
			collectRoleValue(name, found, depth+1)
		}
		collectRoleKeys(t, found, depth+1)
	default:
		if arr, ok := api.AsArray(v); ok {
			for _, item := range arr {
				collectRoleValue(item, found, depth+1)
			}
		}
	}
}

func orderedRoles(found map[models.Role]bool) []models.Role {
	roles := make([]models.Role, 0, len(found))
	for _, r := range roleOrder {
		if found[r] {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return []models.Role{models.RoleAll}
	}
	return roles
}

// normalizeRoles cleans caller supplied roles for local notifications.
func normalizeRoles(in []models.Role) []models.Role {
	found := make(map[models.Role]bool)
	for _, r := range in {
		collectRoleValue(string(r), found, 0)
	}
	return orderedRoles(found)
}
