/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package integration

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/core"
	"github.com/nmos-community/nmos-core/model"
	"github.com/nmos-community/nmos-core/registry"
)

// Scenario B (§8): a Query subscription batches a burst of registration
// traffic into one grain within the subscription's rate window, chained
// through registry.Registry.Register rather than inserting straight
// into the store.
var _ = Describe("Scenario B: subscription grain batching", func() {
	It("batches 10 sender registrations arriving within 10ms into one grain", func() {
		store := model.NewStore(&cmn.Clock{})
		store.Permissive = true // this scenario only cares about grain batching, not the full parent tree
		regSrv := core.NewRegistryServer(fastCfg(cmn.RoleRegistry), store)

		sub, err := regSrv.Registry.CreateSubscription(registry.SubscriptionRequest{
			ResourcePath: "/senders",
		}, "ws://registry-1/subscriptions")
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.ID).NotTo(BeEmpty())

		pump := regSrv.NewPump(registry.Query{Type: model.TypeSender}, 50*time.Millisecond, 2*time.Second, 1000, false)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- pump.Run(ctx) }()
		time.Sleep(20 * time.Millisecond) // let the pump capture its starting cursor

		deviceID := model.NewID()
		Expect(store.Insert(&model.Device{Envelope: model.Envelope{ID: deviceID, Type: model.TypeDevice}})).To(Succeed())

		flowID := model.NewID()
		for i := 0; i < 10; i++ {
			sender := &model.Sender{
				Envelope:  model.Envelope{ID: model.NewID(), Type: model.TypeSender, FlowID: flowID, DeviceID: deviceID},
				Transport: model.TransportRTPMcast,
			}
			status, err := regSrv.Registry.Register(sender, time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusCreated))
		}

		var g registry.Grain
		select {
		case g = <-pump.Out:
		case <-time.After(150 * time.Millisecond):
			Fail("no grain delivered within 150ms")
		}
		Expect(g.Data).To(HaveLen(10))

		cancel()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})
})
