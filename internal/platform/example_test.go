package platform_test

import (
	"context"
	"fmt"
	"log"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/platform"
)

func ExampleDetector_Detect() {
	info, err := platform.NewDetector().Detect(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("OS: %s\n", info.OS)
	if info.HostABI != "" {
		fmt.Printf("Host ABI: %s\n", info.HostABI)
	}
}

func ExampleInfo_GetDistro() {
	info := &platform.Info{
		OS:       "linux",
		Platform: "ubuntu",
		Family:   platform.FamilyDebian,
		Version:  "22.04",
	}

	if distro := info.GetDistro(); distro != nil {
		fmt.Printf("%s %s (%s family)\n", distro.ID, distro.Version, distro.Family)
	}
	// Output: ubuntu 22.04 (debian family)
}
