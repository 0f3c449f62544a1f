// File: internal/report/items.go (complete file)

package report

type ItemLabel string

const (
	ItemIP      ItemLabel = "ip_check"
	ItemService ItemLabel = "service_access"
	ItemPorts   ItemLabel = "port_check"
	ItemTURN    ItemLabel = "turn_check"
	ItemP2P     ItemLabel = "p2p_check"
)

// CheckItem is the static description of one diagnostic shown to the operator.
type CheckItem struct {
	Label       ItemLabel `json:"label"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	Detail      string    `json:"detail"`
	NGReason    string    `json:"ng_reason"`
	Action      string    `json:"action"`
	// Reference items are informational and do not affect the overall result.
	Reference bool `json:"reference,omitempty"`
}

var CheckItems = []CheckItem{
	{
		Label:       ItemIP,
		DisplayName: "External IP address",
		Description: "The address this network uses to reach the internet",
		Detail:      "Shows the global IP address the camera service will see for this network.",
		NGReason:    "The external IP address could not be determined. A proxy, a closed network or an unusual NAT setup can cause this.",
		Action:      "IP discovery may be restricted. Tell your network administrator that WebRTC video streaming will be used on this network and ask them to review the proxy and NAT configuration.",
	},
	{
		Label:       ItemService,
		DisplayName: "Service reachability",
		Description: "Whether the camera service can be reached over HTTPS (TCP 443)",
		Detail:      "Fetches a small resource from the service portal over HTTPS.",
		NGReason:    "The camera service could not be reached over the internet.",
		Action:      "Check that outbound TCP 443 (HTTPS) is not blocked. Ask your network administrator or internet provider to confirm.",
	},
	{
		Label:       ItemPorts,
		DisplayName: "Port check",
		Description: "Whether the TCP/UDP ports used for control and video are open",
		Detail:      "A remote checker connects back to this network on every port the cameras use.",
		NGReason:    "Some of the ports needed for camera video or control appear to be restricted.",
		Action:      "Ask your network administrator or internet provider to allow the ports used by the camera service. Contact sales for the exact port list.",
	},
	{
		Label:       ItemTURN,
		DisplayName: "TURN relay connection",
		Description: "Whether a WebRTC connection can be made through the relay",
		Detail:      "Connects with relay candidates only. Success means this network can reach the camera relay servers.",
		NGReason:    "A relayed (TURN) connection over the internet could not be established.",
		Action:      "Ask your network administrator to allow UDP/TCP 3478 and TCP 443 to the TURN relay, and to let WebRTC traffic through any proxy.",
	},
	{
		Label:       ItemP2P,
		DisplayName: "P2P connection (reference)",
		Description: "Whether a direct WebRTC connection can be made",
		Detail:      "Not required. A direct connection avoids the relay and gives smoother video.",
		NGReason:    "A direct connection could not be established and the connection fell back to the relay. The router or NAT configuration is the usual cause.",
		Action:      "NAT traversal through STUN appears to be limited. P2P is optional, so video still works. Review the network configuration only if you want to optimise video quality.",
		Reference:   true,
	},
}

func LookupItem(label ItemLabel) (CheckItem, bool) {
	for _, it := range CheckItems {
		if it.Label == label {
			return it, true
		}
	}
	return CheckItem{}, false
}
