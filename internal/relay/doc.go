// Package relay is the HTTP client for the OPC UA backend service.
//
// The console never speaks OPC UA itself. Connection tests, address-space
// browsing and value reads/writes are POSTed as JSON to a backend API
// (default http://localhost:3000/api), which owns the actual OPC UA session:
//
//	POST /validate-connection  {endpoint}                    -> {connected, message?}
//	POST /browse               {endpoint, nodeId}            -> {nodes}
//	POST /read-value           {endpoint, nodeId}            -> {value, dataType?, sourceTimestamp?}
//	POST /write-value          {endpoint, nodeId, value, dataType?}
//
// Non-2xx responses carry {message}, which becomes the operator-facing error.
//
// # Results
//
// Every operation returns a Result. Failures are normalized through
// package notify and carried in Result.Err together with the notification
// the presentation layer should show; the client itself never displays
// anything. Browse additionally degrades to an empty, non-nil node list so
// trees can render without nil checks.
//
//	client := relay.New(relay.Config{BaseURL: settings.BackendURL})
//	res := client.Browse(ctx, "opc.tcp://plc-01:4840", "")
//	if !res.OK() {
//	    notify.Send(dispatcher, res.Notice)
//	}
//	for _, n := range res.Value { ... }
//
// # Tracing
//
// Each request runs inside an OpenTelemetry span named relay.<path>. The
// global tracer provider is used unless WithTracer is given; it is a no-op
// until package telemetry installs an exporter.
package relay
