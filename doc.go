// Package tke provides a Go client for the Knowledge Engine smart-connector REST API.
//
// A knowledge base registers at a smart connector and exchanges knowledge with
// other knowledge bases through knowledge interactions. Proactive interactions
// (ASK, POST) are invoked by the knowledge base itself; reactive interactions
// (ANSWER, REACT) are delivered to handlers through a long poll.
//
// # Basic Usage
//
// Register a knowledge base:
//
//	client, err := tke.NewClient("http://localhost:8280/rest")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	kb, err := client.RegisterKnowledgeBase(ctx, types.KnowledgeBaseRegistration{
//		ID:               "http://example.org/kb1",
//		Name:             "KB1",
//		Description:      "An example KB1",
//		LeaseRenewalTime: 60,
//	}, &tke.RegisterOptions{Reregister: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer kb.Close()
//
// # Asking
//
//	ask, err := kb.RegisterAsk(ctx, "?a <http://example.org/relatedTo> ?b .")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := ask.Invoke(ctx, types.BindingSet{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, b := range result.BindingSet {
//		fmt.Println(b["a"], b["b"])
//	}
//
// # Answering
//
// Registering the first ANSWER or REACT interaction starts the long poll of
// the knowledge base. Handlers run one at a time on the poll goroutine:
//
//	_, err = kb.RegisterAnswer(ctx, "?a <http://example.org/relatedTo> ?b .",
//		tke.BindingsHandler(func(in types.BindingSet) types.BindingSet {
//			return types.BindingSet{{"a": "<http://example.org/Maths>", "b": "<http://example.org/Science>"}}
//		}))
//
// The poll stops when the handle is closed or the smart connector answers
// with anything but a handle request or 202 Accepted. Done and Err report it.
//
// # Leases
//
// A registration with LeaseRenewalTime renews its lease every 80% of that
// duration until the handle is closed or a renewal fails.
//
// # Errors
//
// Failures match one of the error kinds with errors.Is, e.g.
// errors.Is(err, tke.ErrRegistrationConflict). Non-success responses are
// *ResponseError values holding the server's error text. The client never
// retries; see pkg/retry for caller-side retry loops.
package tke
