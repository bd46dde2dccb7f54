/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/connection"
	"github.com/nmos-community/nmos-core/model"
)

// Scenario C (§8): PATCH a Sender with an absolute scheduled activation
// a short time in the future; at that time (± scheduler latency) active
// must reflect the staged transport parameters and a change grain must
// have been emitted. The reference scenario uses now+2s; this shrinks
// the wait to keep the suite fast while exercising the same code path
// (Manager.Run's real timer, not a manually-popped scheduler entry).
var _ = Describe("Scenario C: scheduled activation timing", func() {
	It("activates at the requested time, not before and not long after", func() {
		store := model.NewStore(&cmn.Clock{})
		senderID := model.NewID()
		Expect(store.Insert(&model.Sender{
			Envelope:  model.Envelope{ID: senderID, Type: model.TypeSender},
			Transport: model.TransportRTPMcast,
		})).To(Succeed())

		mgr := connection.NewManager(store, 30*time.Second, noopAutoResolver, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = mgr.Run(ctx) }()

		after := store.HighWaterSeq()
		now := cmn.Now()
		requestedAt := now.Add(200 * time.Millisecond)
		_, err := mgr.ApplyPatch(senderID, connection.PatchRequest{
			TransportParams: model.TransportParams{{"destination_ip": "239.0.0.1"}},
			Activation: &model.Activation{
				Mode:          model.ActivateScheduledAbsolute,
				RequestedTime: requestedAt.String(),
			},
		}, now)
		Expect(err).NotTo(HaveOccurred())

		res, _ := store.Find(senderID)
		Expect(res.(model.Connectable).ConnState().Active).To(BeEmpty(), "must not activate before its requested time")

		Consistently(func() bool {
			res, _ := store.Find(senderID)
			return len(res.(model.Connectable).ConnState().Active) > 0
		}, 150*time.Millisecond, 20*time.Millisecond).Should(BeFalse())

		Eventually(func() string {
			res, _ := store.Find(senderID)
			active := res.(model.Connectable).ConnState().Active
			if len(active) == 0 {
				return ""
			}
			ip, _ := active[0]["destination_ip"].(string)
			return ip
		}, time.Second, 10*time.Millisecond).Should(Equal("239.0.0.1"))

		recs, _ := store.WaitForChange(ctx, after, 0)
		Expect(recs).NotTo(BeEmpty(), "activation must have emitted at least one change record")
	})
})
