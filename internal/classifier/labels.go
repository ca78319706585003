// labels.go label file loading and the default accepted bird label set
package classifier

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tphakala/birdfeeder-go/internal/errors"
)

// LoadLabels reads a label file with one label per line. Blank lines are
// skipped; the order must match the model's output tensor.
func LoadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open label file: %w", err)).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("label_path", path).
			Build()
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(fmt.Errorf("failed to read label file: %w", err)).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("label_path", path).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.Newf("label file is empty: %s", path).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Build()
	}
	return labels, nil
}

// DefaultAcceptedLabels is the set of ImageNet class labels treated as birds
// when no accepted label set is configured. It covers the bird classes of
// the standard ImageNet-1k taxonomy.
func DefaultAcceptedLabels() []string {
	return []string{
		"cock", "hen", "ostrich", "brambling", "goldfinch", "house finch",
		"junco", "indigo bunting", "robin", "bulbul", "jay", "magpie",
		"chickadee", "water ouzel", "kite", "bald eagle", "vulture",
		"great grey owl", "black grouse", "ptarmigan", "ruffed grouse",
		"prairie chicken", "peacock", "quail", "partridge", "African grey",
		"macaw", "sulphur-crested cockatoo", "lorikeet", "coucal",
		"bee eater", "hornbill", "hummingbird", "jacamar", "toucan",
		"drake", "red-breasted merganser", "goose", "black swan",
		"white stork", "black stork", "spoonbill", "flamingo",
		"little blue heron", "American egret", "bittern", "crane",
		"limpkin", "European gallinule", "American coot", "bustard",
		"ruddy turnstone", "red-backed sandpiper", "redshank", "dowitcher",
		"oystercatcher", "pelican", "king penguin", "albatross",
	}
}
