// Package client implements the untrusted side of secstore. RPCStorage
// issues typed requests to one storage domain over any transport and
// serializer.
//
// The receive buffer of every call is allocated to the maximum response size
// of the command (1 MiB for Put, Get and List, 1 KiB for Version) before the
// request is sent. The transports never grow it: a larger response fails with
// common.ErrBufferTooSmall. Errors reported by the server are returned as
// *common.RemoteError.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		Transport: common.ClientTransportConfig{
//			Endpoints:  []string{"/run/secstore.sock"},
//			RetryCount: 3,
//		},
//		TimeoutSecond: 5,
//		EUID:          uint32(os.Geteuid()),
//	}
//
//	storage, err := client.NewRPCStorage(common.DomainWifiProfiles, config,
//		unix.NewUnixClientTransport(), serializer.NewJSONSerializer())
//	if err != nil {
//		return err
//	}
//	defer storage.Close()
//
//	prev, replaced, err := storage.Put("home", []byte("hunter2"))
//	value, found, err := storage.Get("home")
//	keys, err := storage.List(nil, "")
//
// On unix sockets (linux) the server ignores config.EUID and identifies the
// caller by the peer credentials of the connection.
package client
