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
	"github.com/nmos-community/nmos-core/core"
	"github.com/nmos-community/nmos-core/discovery"
	"github.com/nmos-community/nmos-core/model"
)

// Scenario A (§8): a single Node registered against an in-process
// Registry appears in the Registry's catalogue within a few seconds,
// and re-registers once the Registry's GC expires it for having gone
// silent.
var _ = Describe("Scenario A: Node registration and GC re-registration", func() {
	It("registers the Node's resources and re-registers after GC expiry", func() {
		const baseURL = "http://registry-1:80"

		regStore := model.NewStore(&cmn.Clock{})
		regSrv := core.NewRegistryServer(fastCfg(cmn.RoleRegistry), regStore)

		client := newFakeRegistrationClient()
		client.addBackend(baseURL, regSrv.Registry)

		resolver := discovery.NewStaticResolver()
		resolver.Set(discovery.ServiceRegister, []discovery.Instance{
			{Name: "registry-1", Host: "registry-1", Port: 80, APIProto: "http", Priority: 100},
		})

		nodeStore := model.NewStore(&cmn.Clock{})
		nodeID := model.NewID()
		Expect(nodeStore.Insert(&model.Node{Envelope: model.Envelope{ID: nodeID, Type: model.TypeNode, Health: model.NeverExpire}})).To(Succeed())
		devID := model.NewID()
		Expect(nodeStore.Insert(&model.Device{Envelope: model.Envelope{ID: devID, Type: model.TypeDevice, NodeID: nodeID, Health: model.NeverExpire}})).To(Succeed())
		srcID := model.NewID()
		Expect(nodeStore.Insert(&model.Source{Envelope: model.Envelope{ID: srcID, Type: model.TypeSource, NodeID: nodeID, DeviceID: devID, Health: model.NeverExpire}})).To(Succeed())
		flowID := model.NewID()
		Expect(nodeStore.Insert(&model.Flow{Envelope: model.Envelope{ID: flowID, Type: model.TypeFlow, NodeID: nodeID, SourceID: srcID, DeviceID: devID, Health: model.NeverExpire}})).To(Succeed())
		senderID := model.NewID()
		Expect(nodeStore.Insert(&model.Sender{Envelope: model.Envelope{ID: senderID, Type: model.TypeSender, NodeID: nodeID, FlowID: flowID, DeviceID: devID, Health: model.NeverExpire}, Transport: model.TransportRTPMcast})).To(Succeed())

		nodeSrv := core.NewNodeServer(
			fastCfg(cmn.RoleNode), nodeStore, nodeID,
			resolver, discovery.NoopAdvertiser{},
			client, fakeSystemClient{},
			noopAutoResolver, nil,
			func(string, []byte) error { return nil },
		)

		// Only the Node's behaviour set runs as a supervised background
		// task here; the Registry side is driven directly (Register/GC
		// Sweep) the same way registry/registry_test.go exercises it, so
		// advancing the GC's clock below never races a concurrently
		// running GC.Run goroutine.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = nodeSrv.Run(ctx, 5*time.Second) }()

		Eventually(func() bool {
			_, ok := regStore.Find(nodeID)
			return ok
		}, 5*time.Second, 10*time.Millisecond).Should(BeTrue(), "node must appear in the registry catalogue")
		Eventually(func() bool { _, ok := regStore.Find(senderID); return ok }, time.Second, 5*time.Millisecond).Should(BeTrue())

		// Advance the GC's clock past ExpiryInterval and force a sweep
		// directly, rather than waiting on the real heartbeat/GC timers.
		future := time.Now().Add(fastCfg(cmn.RoleRegistry).ExpiryInterval + time.Second)
		regSrv.GC.Now = func() time.Time { return future }
		expired := regSrv.GC.Sweep()
		Expect(expired).To(ContainElement(nodeID))

		_, stillThere := regStore.Find(nodeID)
		Expect(stillThere).To(BeFalse(), "gc must have cascaded-erased the expired node")

		// The Node's own heartbeat loop must notice the 404 and
		// re-register from scratch against the same candidate.
		Eventually(func() bool {
			_, ok := regStore.Find(nodeID)
			return ok
		}, 5*time.Second, 10*time.Millisecond).Should(BeTrue(), "node must re-register after GC expiry")
		Eventually(func() bool { _, ok := regStore.Find(senderID); return ok }, time.Second, 5*time.Millisecond).Should(BeTrue())
	})
})
