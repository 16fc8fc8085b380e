// Package command admits "send this code" commands into the bridge.
//
// A Decoder validates messages from the two command topics and pushes
// TransmitRequest values into a bounded Queue that the transmit loop drains
// one request per tick.
//
// Switch-by-address (type A) payload:
//
//	{"group":"11111","device":"11111","repeatTransmit":5,"switchOnOff":true}
//
// Raw-code payload:
//
//	{"code":1234,"codeLength":24,"protocol":1,"repeatTransmit":5}
//
// Every key is required. A full queue rejects messages before they are
// parsed.
package command
