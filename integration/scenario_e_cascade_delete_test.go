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

// Scenario E (§8): deleting a Device cascades to every descendant
// Sender/Receiver, and the subscription pump emits one grain entry per
// child removed, in the same commit order the cascade walked them.
var _ = Describe("Scenario E: cascade delete", func() {
	It("removes every descendant and emits one delete entry per child", func() {
		store := model.NewStore(&cmn.Clock{})
		regSrv := core.NewRegistryServer(fastCfg(cmn.RoleRegistry), store)

		nodeID := model.NewID()
		Expect(store.Insert(&model.Node{Envelope: model.Envelope{ID: nodeID, Type: model.TypeNode}})).To(Succeed())
		devID := model.NewID()
		Expect(store.Insert(&model.Device{Envelope: model.Envelope{ID: devID, Type: model.TypeDevice, NodeID: nodeID}})).To(Succeed())

		senderIDs := make([]string, 3)
		for i := range senderIDs {
			senderIDs[i] = model.NewID()
			Expect(store.Insert(&model.Sender{
				Envelope:  model.Envelope{ID: senderIDs[i], Type: model.TypeSender, DeviceID: devID},
				Transport: model.TransportRTPMcast,
			})).To(Succeed())
		}
		receiverID := model.NewID()
		Expect(store.Insert(&model.Receiver{Envelope: model.Envelope{ID: receiverID, Type: model.TypeReceiver, DeviceID: devID}})).To(Succeed())

		senderPump := regSrv.NewPump(registry.Query{Type: model.TypeSender}, 100*time.Millisecond, time.Hour, 100, false)
		receiverPump := regSrv.NewPump(registry.Query{Type: model.TypeReceiver}, 100*time.Millisecond, time.Hour, 100, false)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = senderPump.Run(ctx) }()
		go func() { _ = receiverPump.Run(ctx) }()
		time.Sleep(20 * time.Millisecond)

		status, err := regSrv.Registry.Delete(devID)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))

		for _, id := range senderIDs {
			_, ok := store.Find(id)
			Expect(ok).To(BeFalse())
		}
		_, ok := store.Find(receiverID)
		Expect(ok).To(BeFalse())
		_, ok = store.Find(devID)
		Expect(ok).To(BeFalse())

		var senderGrain registry.Grain
		Eventually(senderPump.Out, time.Second).Should(Receive(&senderGrain))
		Expect(senderGrain.Data).To(HaveLen(3))
		for _, entry := range senderGrain.Data {
			Expect(entry.Post).To(BeNil())
			Expect(entry.Pre).NotTo(BeNil())
		}

		var receiverGrain registry.Grain
		Eventually(receiverPump.Out, time.Second).Should(Receive(&receiverGrain))
		Expect(receiverGrain.Data).To(HaveLen(1))
		Expect(receiverGrain.Data[0].Post).To(BeNil())
	})
})
