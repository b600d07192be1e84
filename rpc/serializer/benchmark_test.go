package serializer

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/secstore/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	euid := uint32(1000)

	listKeys := make([]common.Key, 256)
	for i := range listKeys {
		listKeys[i] = common.Key{EUID: euid, UserKey: fmt.Sprintf("network-%03d", i)}
	}

	return map[string]common.Message{
		"Version": common.VersionRequest{}.ToMessage(),
		"SmallKeyOnly": common.GetRequest{
			Key: "k",
		}.ToMessage(),
		"LargeKeyOnly": common.GetRequest{
			Key: "this-is-a-very-large-key-that-could-be-used-for-storing-data-or-as-a-document-id-in-some-cases",
		}.ToMessage(),
		"SmallValue": common.PutRequest{
			Key: "key",
			Val: []byte("v"),
		}.ToMessage(),
		"LargeValue": common.PutRequest{
			Key: "key",
			Val: make([]byte, 1024), // 1KB of data
		}.ToMessage(),
		"VeryLargeValue": common.GetResponse{
			Val:   make([]byte, 1024*16), // 16KB of data
			Found: true,
		}.ToMessage(),
		"ListRequest": common.ListRequest{
			EUID:   &euid,
			Prefix: "network-",
		}.ToMessage(),
		"ListResponse": common.NewListResponse(listKeys).ToMessage(),
		"ErrorMessage": *common.NewErrorResponse(common.CmdPut, fmt.Errorf(
			"Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.")),
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				out := make([]byte, common.MaxDataResponseSize)
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(msg, out)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()
	serializedData := make(map[string]map[string][]byte)

	// Pre-serialize all messages with all serializers
	for name, factory := range testSerializers {
		serializer := factory()
		serializedData[name] = make(map[string][]byte)

		for msgName, msg := range messages {
			serializedData[name][msgName] = serialize(b, serializer, msg)
		}
	}

	for name, factory := range testSerializers {
		for msgName := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data := serializedData[name][msgName]
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var msg common.Message
					err := serializer.Deserialize(data, &msg)
					if err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each message type
func BenchmarkSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		serializer := factory()

		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				data := serialize(b, serializer, msg)

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
