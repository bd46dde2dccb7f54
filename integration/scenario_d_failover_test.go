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

// Scenario D (§8): a dual-homed Node discovers two Registry candidates,
// registers against the higher-priority one, and fails over to the
// second within one backoff cycle once the first stops answering
// heartbeats, carrying the same resource set across.
var _ = Describe("Scenario D: dual-homed failover", func() {
	It("re-registers against the second candidate when the first goes dark", func() {
		const primaryURL = "http://registry-primary:80"
		const secondaryURL = "http://registry-secondary:80"

		primaryStore := model.NewStore(&cmn.Clock{})
		primarySrv := core.NewRegistryServer(fastCfg(cmn.RoleRegistry), primaryStore)
		secondaryStore := model.NewStore(&cmn.Clock{})
		secondarySrv := core.NewRegistryServer(fastCfg(cmn.RoleRegistry), secondaryStore)

		client := newFakeRegistrationClient()
		client.addBackend(primaryURL, primarySrv.Registry)
		client.addBackend(secondaryURL, secondarySrv.Registry)

		resolver := discovery.NewStaticResolver()
		resolver.Set(discovery.ServiceRegister, []discovery.Instance{
			{Name: "secondary", Host: "registry-secondary", Port: 80, APIProto: "http", Priority: 200},
			{Name: "primary", Host: "registry-primary", Port: 80, APIProto: "http", Priority: 100},
		})

		nodeStore := model.NewStore(&cmn.Clock{})
		nodeID := model.NewID()
		Expect(nodeStore.Insert(&model.Node{Envelope: model.Envelope{ID: nodeID, Type: model.TypeNode, Health: model.NeverExpire}})).To(Succeed())
		devID := model.NewID()
		Expect(nodeStore.Insert(&model.Device{Envelope: model.Envelope{ID: devID, Type: model.TypeDevice, NodeID: nodeID, Health: model.NeverExpire}})).To(Succeed())

		nodeSrv := core.NewNodeServer(
			fastCfg(cmn.RoleNode), nodeStore, nodeID,
			resolver, discovery.NoopAdvertiser{},
			client, fakeSystemClient{},
			noopAutoResolver, nil,
			func(string, []byte) error { return nil },
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = nodeSrv.Run(ctx, 5*time.Second) }()

		Eventually(func() bool { _, ok := primaryStore.Find(nodeID); return ok }, 5*time.Second, 10*time.Millisecond).
			Should(BeTrue(), "must register against the lower-priority-number (primary) candidate first")
		Eventually(func() bool { _, ok := primaryStore.Find(devID); return ok }, time.Second, 5*time.Millisecond).Should(BeTrue())

		client.setDown(primaryURL, true)

		Eventually(func() bool { _, ok := secondaryStore.Find(nodeID); return ok }, 5*time.Second, 10*time.Millisecond).
			Should(BeTrue(), "must fail over to the secondary candidate once the primary stops answering")
		Eventually(func() bool { _, ok := secondaryStore.Find(devID); return ok }, time.Second, 5*time.Millisecond).
			Should(BeTrue(), "the full resource set must carry over to the new candidate")
	})
})
