// Package miio implements the encrypted local UDP transport spoken by Xiaomi
// ecosystem fans.
//
// Two RPC dialects run over the same transport:
//
//   - miIO ("direct-method"): named methods with positional arguments, and
//     properties read by name with get_prop. The transport keeps a flat
//     snapshot of declared property names for these devices.
//   - MIoT ("generic-property"): get_properties/set_properties calls where
//     every entry is addressed by a (did, siid, piid) triple. The transport
//     only carries the calls; the property cache lives in the fan package.
//
// # Wire Format
//
// Every packet starts with a 32-byte header:
//
//	 0      2      4          8          12         16                32
//	┌──────┬──────┬──────────┬──────────┬──────────┬──────────────────┐
//	│2131  │length│ unknown  │device id │  stamp   │ MD5 checksum     │
//	└──────┴──────┴──────────┴──────────┴──────────┴──────────────────┘
//
// followed by the JSON request or response, encrypted with AES-128-CBC
// (key = MD5(token), iv = MD5(key || token), PKCS#7 padding). The checksum
// covers the header (with the token in the checksum field) and the payload.
//
// A session starts with a hello packet; the reply carries the device id and
// its uptime stamp, which later requests must advance.
//
// # Usage
//
//	client, err := miio.Connect(ctx, miio.Config{
//	    Address: "192.168.1.40",
//	    Token:   "ffffffffffffffffffffffffffffffff",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Destroy()
//
//	raw, err := client.Call(ctx, "get_prop", []any{"power"}, miio.CallOptions{})
//
// # Thread Safety
//
// Client methods are safe for concurrent use. Requests are serialised on the
// socket so responses can be matched to request ids.
package miio
