package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"deckhand/internal/domain"
	"deckhand/internal/slides"
)

var slidesCmd = &cobra.Command{
	Use:   "slides",
	Short: "Inspect and edit a presentation's slides",
	Long: `Slide edits apply locally first and save through the API; a failed save
keeps the local change so the command can be retried. Slides are addressed by
position (1-based) or by slide id.`,
}

var slidesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "List the slides in a deck",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlidesShow,
}

var (
	slidesAddTitle   string
	slidesAddContent []string
	slidesAddNotes   string
)

var slidesAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Append a new slide",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlidesAdd,
}

var slidesDelCmd = &cobra.Command{
	Use:   "del <id> <slide>",
	Short: "Delete a slide",
	Args:  cobra.ExactArgs(2),
	RunE:  runSlidesDel,
}

var slidesDupCmd = &cobra.Command{
	Use:   "dup <id> <slide>",
	Short: "Duplicate a slide, inserting the copy right after it",
	Args:  cobra.ExactArgs(2),
	RunE:  runSlidesDup,
}

var slidesMoveCmd = &cobra.Command{
	Use:   "move <id> <from> <to>",
	Short: "Move a slide to a new position (1-based)",
	Args:  cobra.ExactArgs(3),
	RunE:  runSlidesMove,
}

var (
	slidesSetTitle       string
	slidesSetContent     []string
	slidesSetNotes       string
	slidesSetImagePrompt string
)

var slidesSetCmd = &cobra.Command{
	Use:   "set <id> <slide>",
	Short: "Update a slide's fields",
	Args:  cobra.ExactArgs(2),
	RunE:  runSlidesSet,
}

func init() {
	slidesAddCmd.Flags().StringVar(&slidesAddTitle, "title", "", "slide title")
	slidesAddCmd.Flags().StringArrayVar(&slidesAddContent, "content", nil, "content line (repeatable)")
	slidesAddCmd.Flags().StringVar(&slidesAddNotes, "notes", "", "speaker notes")

	slidesSetCmd.Flags().StringVar(&slidesSetTitle, "title", "", "slide title")
	slidesSetCmd.Flags().StringArrayVar(&slidesSetContent, "content", nil, "content line, replacing existing content (repeatable)")
	slidesSetCmd.Flags().StringVar(&slidesSetNotes, "notes", "", "speaker notes")
	slidesSetCmd.Flags().StringVar(&slidesSetImagePrompt, "image-prompt", "", "image generation prompt")

	slidesCmd.AddCommand(slidesShowCmd, slidesAddCmd, slidesDelCmd, slidesDupCmd, slidesMoveCmd, slidesSetCmd)
	rootCmd.AddCommand(slidesCmd)
}

func loadEditor(ctx context.Context, id string) (*slides.Editor, error) {
	p, err := client.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	editor, err := slides.NewEditor(slides.Options{Saver: client, Logger: &logger})
	if err != nil {
		return nil, err
	}
	editor.SetPresentation(p)
	return editor, nil
}

// resolveSlideID accepts a 1-based position or a literal slide id.
func resolveSlideID(p *domain.Presentation, arg string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(p.Slides) {
			return "", fmt.Errorf("slide %d out of range (deck has %d)", n, len(p.Slides))
		}
		return p.Slides[n-1].ID, nil
	}
	if p.FindSlide(arg) < 0 {
		return "", fmt.Errorf("no slide with id %q", arg)
	}
	return arg, nil
}

func runSlidesShow(cmd *cobra.Command, args []string) error {
	p, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(p.Slides) == 0 {
		fmt.Println("No slides yet. Generate some with the slides step, or add one with: deckhand slides add")
		return nil
	}
	table := tablewriter.NewTable(os.Stdout)
	table.Header("#", "ID", "TITLE", "LINES", "IMAGE")
	for i, s := range p.Slides {
		image := "-"
		if s.ImageURL != "" {
			image = "yes"
		}
		if err := table.Append(strconv.Itoa(i+1), s.ID, s.Title, strconv.Itoa(len(s.Content)), image); err != nil {
			return err
		}
	}
	return table.Render()
}

func runSlidesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	editor, err := loadEditor(ctx, args[0])
	if err != nil {
		return err
	}
	slide, err := editor.AddNewSlide(ctx)
	if err != nil {
		return err
	}
	if slidesAddTitle != "" || len(slidesAddContent) > 0 || slidesAddNotes != "" {
		if slidesAddTitle != "" {
			slide.Title = slidesAddTitle
		}
		if len(slidesAddContent) > 0 {
			slide.Content = append(domain.SlideContent(nil), slidesAddContent...)
		}
		if slidesAddNotes != "" {
			slide.Notes = slidesAddNotes
		}
		if err := editor.UpdateSlide(slide); err != nil {
			return err
		}
		if err := editor.Save(ctx); err != nil {
			return err
		}
	}
	fmt.Printf("Added slide %q at position %d\n  id: %s\n", slide.Title, slide.Order+1, slide.ID)
	return nil
}

func runSlidesDel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	editor, err := loadEditor(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := resolveSlideID(editor.Presentation(), args[1])
	if err != nil {
		return err
	}
	if err := editor.DeleteSlide(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted slide %s (%d remaining)\n", id, len(editor.Presentation().Slides))
	return nil
}

func runSlidesDup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	editor, err := loadEditor(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := resolveSlideID(editor.Presentation(), args[1])
	if err != nil {
		return err
	}
	copySlide, err := editor.DuplicateSlide(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Duplicated into %q at position %d\n  id: %s\n", copySlide.Title, copySlide.Order+1, copySlide.ID)
	return nil
}

func runSlidesMove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	editor, err := loadEditor(ctx, args[0])
	if err != nil {
		return err
	}
	from, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("from position %q is not a number", args[1])
	}
	to, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("to position %q is not a number", args[2])
	}
	if err := editor.ReorderSlides(ctx, from-1, to-1); err != nil {
		return err
	}
	fmt.Printf("Moved slide %d to position %d\n", from, to)
	return nil
}

func runSlidesSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	editor, err := loadEditor(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := resolveSlideID(editor.Presentation(), args[1])
	if err != nil {
		return err
	}
	if err := editor.Select(id); err != nil {
		return err
	}
	slide, _ := editor.Selected()

	changed := false
	if cmd.Flags().Changed("title") {
		slide.Title = slidesSetTitle
		changed = true
	}
	if cmd.Flags().Changed("content") {
		slide.Content = append(domain.SlideContent(nil), slidesSetContent...)
		changed = true
	}
	if cmd.Flags().Changed("notes") {
		slide.Notes = slidesSetNotes
		changed = true
	}
	if cmd.Flags().Changed("image-prompt") {
		slide.ImagePrompt = slidesSetImagePrompt
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to change; pass at least one of --title, --content, --notes, --image-prompt")
	}

	if err := editor.UpdateSlide(slide); err != nil {
		return err
	}
	if err := editor.Save(ctx); err != nil {
		return err
	}
	fmt.Printf("Updated slide %s\n", id)
	return nil
}
