// Package discovery finds OPC UA servers on the local network via mDNS.
//
// OPC UA servers and Local Discovery Servers with multicast extension
// (LDS-ME) announce themselves as "_opcua-tcp._tcp" DNS-SD services. The
// TXT records carry the endpoint path ("path=/UA/Server") and a capability
// list ("caps=LDS,DA").
//
// # Discovery Process
//
//  1. Broadcasts mDNS queries on the local network
//  2. Listens for _opcua-tcp._tcp service announcements
//  3. Builds an opc.tcp:// endpoint from address, port and path, skipping
//     entries whose endpoint does not validate
//  4. Returns the servers found when the timeout elapses
//
// # Usage Example
//
//	servers, err := discovery.QuickScan(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, s := range servers {
//	    fmt.Printf("%s -> %s\n", s.Name, s.Endpoint)
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Servers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
