package notifications

import (
	"strings"

	"github.com/franzego/registry-backoffice/internal/api"
	"github.com/franzego/registry-backoffice/internal/models"
)

// Page is a client-side route of the dashboard.
type Page string

const (
	PageDashboard     Page = "dashboard"
	PageUsers         Page = "users"
	PageRequests      Page = "requests"
	PageBeneficiaries Page = "beneficiaries"
	PageReports       Page = "reports"
	PageConfig        Page = "config"
	PageNotifications Page = "notifications"
)

// Destination is where activating a notification takes the user.
type Destination struct {
	Page      Page   `json:"page"`
	RequestID string `json:"requestId,omitempty"`
}

var requestTypes = map[string]bool{
	"request":            true,
	"request-assignment": true,
	"request-unassigned": true,
	"assignment":         true,
	"approval":           true,
}

// channelRoutes is checked in order; the first matching fragment wins.
var channelRoutes = []struct {
	fragments []string
	page      Page
}{
	{[]string{"user"}, PageUsers},
	{[]string{"report"}, PageReports},
	{[]string{"config", "setting"}, PageConfig},
	{[]string{"beneficiary", "padron"}, PageBeneficiaries},
}

// ResolveDestination maps a notification to a dashboard route. It is pure:
// the same notification always resolves to the same destination.
func ResolveDestination(n models.Notification) Destination {
	requestID, isRequest := relatedRequest(n)
	kind := routeKey(n.Type)
	if isRequest || requestTypes[kind] {
		return Destination{Page: PageRequests, RequestID: requestID}
	}

	if channel, ok := api.StringField(n.Metadata, "channel"); ok {
		channel = routeKey(channel)
		for _, route := range channelRoutes {
			for _, fragment := range route.fragments {
				if strings.Contains(channel, fragment) {
					return Destination{Page: route.page}
				}
			}
		}
	}

	if kind == "dashboard" {
		return Destination{Page: PageDashboard}
	}
	return Destination{Page: PageNotifications}
}

// relatedRequest returns the linked request id, and whether the
// notification carries any request reference at all.
func relatedRequest(n models.Notification) (string, bool) {
	if id := strings.TrimSpace(n.RelatedRequestID); id != "" {
		return id, true
	}
	if id, ok := api.StringField(n.Metadata, "requestId", "requestCode"); ok {
		return id, true
	}
	if _, ok := api.StringField(n.Metadata, "requestType"); ok {
		return "", true
	}
	return "", false
}

func routeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "-", "_", "-").Replace(s)
}
