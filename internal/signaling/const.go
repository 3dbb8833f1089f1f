package signaling

// Wire tags, kept as named constants rather than inline literals — the
// original Rust protocol (websocketprotocol/socket_protocol_const.rs) keeps
// them separate from the send/receive logic, and so do we.
const (
	tagInitOfferer      = "initOfferer"
	tagOffererSDP       = "offererSdp"
	tagInitClient       = "initClient"
	tagClientSDP        = "clientSdp"
	tagStartSession     = "startSession"
	tagForceStopSession = "forceStopSession"

	tagSDPRequestFrom = "sdpRequestFrom"
	tagSDPClient      = "sdpClient"
	tagSDPOfferer     = "sdpOfferer"
	tagNotifEndSession = "notifEndSession"
)
