/*
Copyright 2022 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tracking_test

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/thestormforge/optimize-train/internal/tracking"
	"github.com/thestormforge/optimize-train/internal/tracking/fake"
)

func TestSetExperiment(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	api := fake.NewFakeAPI()

	id, err := tracking.SetExperiment(ctx, api, "yolo-object-detection")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(id).NotTo(BeEmpty())

	again, err := tracking.SetExperiment(ctx, api, "yolo-object-detection")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(again).To(Equal(id))
}

func TestActiveRun(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	api := fake.NewFakeAPI()

	id, err := tracking.SetExperiment(ctx, api, "yolo-object-detection")
	g.Expect(err).NotTo(HaveOccurred())

	run, err := tracking.StartRun(ctx, api, id, tracking.RunOptions{
		Name:   "exp1",
		Source: "optimize-train",
		Tags:   map[string]string{tracking.TagBaseModel: "yolo26n.pt"},
	})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(run.Info().Status).To(Equal(tracking.RunRunning))

	g.Expect(run.LogParams(ctx, map[string]string{"epochs": "20", "batch": "4"})).To(Succeed())
	g.Expect(run.LogMetrics(ctx, map[string]float64{"mAP50": 0.5})).To(Succeed())
	g.Expect(run.End(ctx, tracking.RunFinished)).To(Succeed())
	g.Expect(run.End(ctx, tracking.RunFailed)).To(Succeed())

	runs := api.Runs()
	g.Expect(runs).To(HaveLen(1))
	g.Expect(runs[0].Info.Status).To(Equal(tracking.RunFinished))
	g.Expect(runs[0].Info.EndTime).NotTo(BeZero())
	g.Expect(runs[0].Data.Params).To(Equal([]tracking.Param{
		{Key: "batch", Value: "4"},
		{Key: "epochs", Value: "20"},
	}))
	g.Expect(runs[0].Data.Metrics).To(HaveLen(1))
	g.Expect(runs[0].Data.Metrics[0].Key).To(Equal("mAP50"))
	g.Expect(runs[0].Data.Tags).To(ContainElements(
		tracking.RunTag{Key: tracking.TagRunName, Value: "exp1"},
		tracking.RunTag{Key: tracking.TagSourceName, Value: "optimize-train"},
		tracking.RunTag{Key: tracking.TagBaseModel, Value: "yolo26n.pt"},
	))
}

func TestActiveRun_LogParamsBatches(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	api := fake.NewFakeAPI()

	id, err := tracking.SetExperiment(ctx, api, "large")
	g.Expect(err).NotTo(HaveOccurred())
	run, err := tracking.StartRun(ctx, api, id, tracking.RunOptions{Name: "many"})
	g.Expect(err).NotTo(HaveOccurred())

	params := make(map[string]string)
	for i := 0; i < 250; i++ {
		params[string(rune('a'+i%26))+string(rune('a'+i/26))] = "x"
	}
	g.Expect(run.LogParams(ctx, params)).To(Succeed())
	g.Expect(api.Runs()[0].Data.Params).To(HaveLen(250))
}
